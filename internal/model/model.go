// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User is a platform account as seen by the user directory. IdentityKey is
// the registered public key blob; it is interpreted as an Ed25519
// verification key only when it has the expected length.
type User struct {
	ID          uuid.UUID
	Username    string
	DisplayName *string
	IdentityKey []byte
	CreatedAt   time.Time
}

// Channel is a live platform channel. ServerID is NULL for direct-message
// channels, which are never restore targets.
type Channel struct {
	ID          uuid.UUID
	ServerID    uuid.NullUUID
	ChannelType string
	Position    int32
	CategoryID  uuid.NullUUID
	IsPrivate   bool
	Encrypted   bool
	CreatedAt   time.Time
}

// Backup-local records. Their identifiers are strings minted by the
// exporting instance and never become platform identifiers; restore remaps
// them through a per-invocation identifier map.

// BackupCategory is a channel category as recorded in a backup.
type BackupCategory struct {
	LocalID  string `json:"id"`
	Name     string `json:"name"`
	Position int32  `json:"position"`
}

// BackupChannel is a channel as recorded in a backup. CategoryLocalID may
// reference a category that was dropped; the channel is then created
// without a category rather than rejected.
type BackupChannel struct {
	LocalID         string  `json:"id"`
	Name            string  `json:"name"`
	ChannelType     string  `json:"channel_type"`
	Position        int32   `json:"position"`
	CategoryLocalID *string `json:"category_id"`
	IsPrivate       bool    `json:"is_private"`
}

// BackupRole is a role as recorded in a backup. At most one role carries
// IsDefault; it maps onto the live server's default role.
type BackupRole struct {
	LocalID     string  `json:"id"`
	Name        string  `json:"name"`
	Color       *string `json:"color"`
	Permissions int64   `json:"permissions"`
	Position    int32   `json:"position"`
	IsDefault   bool    `json:"is_default"`
}

// BackupOverwrite is a per-channel permission overwrite as recorded in a
// backup. Member-targeted overwrites reference identities from the
// exporting instance and are never applied.
type BackupOverwrite struct {
	ChannelLocalID string `json:"channel_id"`
	TargetType     string `json:"target_type"`
	TargetLocalID  string `json:"target_id"`
	Allow          int64  `json:"allow"`
	Deny           int64  `json:"deny"`
}

// StructuralBackup is the structural section of a backup submitted for
// restore. ServerName is informational and only lands in audit metadata.
type StructuralBackup struct {
	ServerName string
	Categories []BackupCategory
	Channels   []BackupChannel
	Roles      []BackupRole
	Overwrites []BackupOverwrite
}

// RestoreResult reports what a structural restore created or updated.
// ChannelIDMap translates backup-local channel ids to the freshly minted
// ones so the caller can target message replay.
type RestoreResult struct {
	CategoriesCreated  int
	ChannelsCreated    int
	RolesCreated       int
	RolesUpdated       int
	OverwritesApplied  int
	ChannelIDMap       map[string]uuid.UUID
	DefaultRoleMissing bool
}

// MessageRecord is a historical message in transport form: byte fields are
// base64, the timestamp is a string, cross-references are optional strings.
type MessageRecord struct {
	SenderToken    string  `json:"sender_token"`
	EncryptedBody  string  `json:"encrypted_body"`
	Timestamp      string  `json:"timestamp"`
	HasAttachments bool    `json:"has_attachments"`
	SenderID       *string `json:"sender_id"`
	ReplyToID      *string `json:"reply_to_id"`
	MessageType    string  `json:"message_type"`
}

// ImportedMessage is a fully decoded message ready for insertion. SenderID
// and ReplyToID are invalid when the backup value was absent or did not
// parse as a platform identifier.
type ImportedMessage struct {
	SenderToken    []byte
	EncryptedBody  []byte
	Timestamp      time.Time
	HasAttachments bool
	SenderID       uuid.NullUUID
	ReplyToID      uuid.NullUUID
	MessageType    string
}

// SignerInfo identifies the registered account a manifest claims as its
// exporter.
type SignerInfo struct {
	UserID      uuid.UUID
	Username    string
	DisplayName *string
}

// VerifyResult is the outcome of a manifest signature verification.
// A cryptographic mismatch is not an error: Valid is simply false.
type VerifyResult struct {
	Valid              bool
	Signer             *SignerInfo
	IdentityKeyMatches bool
}

// AuditEntry is a best-effort audit record. Metadata is pre-marshaled JSON.
type AuditEntry struct {
	ServerID   uuid.UUID
	ActorID    uuid.UUID
	Action     string
	TargetType *string
	TargetID   uuid.NullUUID
	Metadata   []byte
}

// ExportLog reports a completed client-side export for audit purposes.
type ExportLog struct {
	Scope        string
	ServerID     uuid.NullUUID
	ChannelID    uuid.NullUUID
	MessageCount int64
}
