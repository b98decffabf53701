package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gofrs/uuid/v5"

	"github.com/parleychat/parley/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Verify ---

type verifyExportRequest struct {
	Manifest  json.RawMessage `json:"manifest"`
	Signature string          `json:"signature"`
}

type signerPayload struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name"`
}

type verifyExportResponse struct {
	Valid              bool           `json:"valid"`
	Signer             *signerPayload `json:"signer,omitempty"`
	IdentityKeyMatches bool           `json:"identity_key_matches"`
}

// handleVerifyExport verifies an Ed25519 signature over a manifest's
// canonical JSON. POST /api/v1/exports/verify, no authentication.
func (s *Server) handleVerifyExport(w http.ResponseWriter, r *http.Request) {
	var req verifyExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	res, err := s.exports.Verify(r.Context(), req.Manifest, req.Signature)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := verifyExportResponse{Valid: res.Valid, IdentityKeyMatches: res.IdentityKeyMatches}
	if res.Signer != nil {
		resp.Signer = &signerPayload{
			UserID:      res.Signer.UserID,
			Username:    res.Signer.Username,
			DisplayName: res.Signer.DisplayName,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Export log ---

type logExportRequest struct {
	Scope        string     `json:"scope"`
	ServerID     *uuid.UUID `json:"server_id"`
	ChannelID    *uuid.UUID `json:"channel_id"`
	MessageCount int64      `json:"message_count"`
}

// handleLogExport records a client-side export in the server's audit log.
// POST /api/v1/exports/log.
func (s *Server) handleLogExport(w http.ResponseWriter, r *http.Request) {
	callerID, ok := callerFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}

	var req logExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	entry := model.ExportLog{Scope: req.Scope, MessageCount: req.MessageCount}
	if req.ServerID != nil {
		entry.ServerID = uuid.NullUUID{UUID: *req.ServerID, Valid: true}
	}
	if req.ChannelID != nil {
		entry.ChannelID = uuid.NullUUID{UUID: *req.ChannelID, Valid: true}
	}

	if err := s.exports.LogExport(r.Context(), callerID, entry); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged": true})
}

// --- Restore ---

type restoreServerRequest struct {
	Server struct {
		Name string `json:"name"`
	} `json:"server"`
	Categories []model.BackupCategory  `json:"categories"`
	Channels   []model.BackupChannel   `json:"channels"`
	Roles      []model.BackupRole      `json:"roles"`
	Overwrites []model.BackupOverwrite `json:"permission_overwrites"`
}

type restoreServerResponse struct {
	CategoriesCreated int               `json:"categories_created"`
	ChannelsCreated   int               `json:"channels_created"`
	RolesCreated      int               `json:"roles_created"`
	RolesUpdated      int               `json:"roles_updated"`
	OverwritesApplied int               `json:"overwrites_applied"`
	ChannelIDMap      map[string]string `json:"channel_id_map"`
}

// handleRestoreServer rebuilds server structure from a parsed backup.
// POST /api/v1/servers/{serverID}/restore.
func (s *Server) handleRestoreServer(w http.ResponseWriter, r *http.Request) {
	callerID, ok := callerFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	serverID, err := uuid.FromString(chi.URLParam(r, "serverID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid server id"})
		return
	}

	var req restoreServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	res, err := s.restore.Restore(r.Context(), callerID, serverID, model.StructuralBackup{
		ServerName: req.Server.Name,
		Categories: req.Categories,
		Channels:   req.Channels,
		Roles:      req.Roles,
		Overwrites: req.Overwrites,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	idMap := make(map[string]string, len(res.ChannelIDMap))
	for localID, id := range res.ChannelIDMap {
		idMap[localID] = id.String()
	}
	writeJSON(w, http.StatusOK, restoreServerResponse{
		CategoriesCreated: res.CategoriesCreated,
		ChannelsCreated:   res.ChannelsCreated,
		RolesCreated:      res.RolesCreated,
		RolesUpdated:      res.RolesUpdated,
		OverwritesApplied: res.OverwritesApplied,
		ChannelIDMap:      idMap,
	})
}

// --- Import ---

type importMessagesRequest struct {
	Messages []model.MessageRecord `json:"messages"`
}

type importMessagesResponse struct {
	Imported int `json:"imported"`
}

// handleImportMessages replays a batch of historical messages into a
// restored channel. POST /api/v1/channels/{channelID}/import-messages.
func (s *Server) handleImportMessages(w http.ResponseWriter, r *http.Request) {
	callerID, ok := callerFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	channelID, err := uuid.FromString(chi.URLParam(r, "channelID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid channel id"})
		return
	}

	var req importMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	n, err := s.importer.Import(r.Context(), callerID, channelID, req.Messages)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importMessagesResponse{Imported: n})
}
