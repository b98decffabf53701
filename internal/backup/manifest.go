package backup

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid/v5"

	"github.com/parleychat/parley/internal/errs"
)

// Manifest is a backup manifest split into the one field the engine
// interprets (the exporter identity) and the untouched raw document used
// for signing. Everything beyond exported_by.user_id is opaque bytes.
type Manifest struct {
	ExportedBy uuid.UUID

	raw []byte
}

type manifestEnvelope struct {
	ExportedBy struct {
		UserID string `json:"user_id"`
	} `json:"exported_by"`
}

// ParseManifest extracts the exporter identity and retains the raw
// document for canonical serialization.
func ParseManifest(raw []byte) (*Manifest, error) {
	var env manifestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: manifest is not valid JSON", errs.ErrValidation)
	}
	if env.ExportedBy.UserID == "" {
		return nil, fmt.Errorf("%w: manifest.exported_by.user_id is required", errs.ErrValidation)
	}
	exporter, err := uuid.FromString(env.ExportedBy.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest.exported_by.user_id is not a valid identifier", errs.ErrValidation)
	}
	return &Manifest{ExportedBy: exporter, raw: append([]byte(nil), raw...)}, nil
}

// Canonical returns the canonical byte serialization of the manifest: the
// exact bytes the exporting client signed.
func (m *Manifest) Canonical() ([]byte, error) {
	return Canonicalize(m.raw)
}

// Canonicalize produces a deterministic serialization of a JSON document:
// object keys are sorted lexicographically at every nesting level, output
// is compact, and number literals survive byte-exact. Signature
// verification requires reproducing the signed bytes exactly, so the
// document round-trips through json.Number rather than float64.
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: manifest is not valid JSON", errs.ErrValidation)
	}

	// Exporting clients sign serializer output that leaves <, > and &
	// unescaped; the default encoder turns them into \u escapes.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("%w: manifest cannot be canonicalized", errs.ErrValidation)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
