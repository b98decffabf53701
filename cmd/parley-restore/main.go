// Command parley-restore is an operator CLI for the Parley restore API.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "parley")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "parley")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (auth required)")
	}
	return tf.AccessToken, nil
}

// ---- backup file ----

type messageRecord struct {
	SenderToken    string  `json:"sender_token"`
	EncryptedBody  string  `json:"encrypted_body"`
	Timestamp      string  `json:"timestamp"`
	HasAttachments bool    `json:"has_attachments"`
	SenderID       *string `json:"sender_id"`
	ReplyToID      *string `json:"reply_to_id"`
	MessageType    string  `json:"message_type"`
}

// backupFile mirrors the client exporter's on-disk layout: signed manifest
// plus structural data, with message history keyed by exported channel id.
type backupFile struct {
	Manifest   json.RawMessage            `json:"manifest"`
	Signature  string                     `json:"signature"`
	Server     json.RawMessage            `json:"server"`
	Categories json.RawMessage            `json:"categories"`
	Channels   json.RawMessage            `json:"channels"`
	Roles      json.RawMessage            `json:"roles"`
	Overwrites json.RawMessage            `json:"permission_overwrites"`
	Messages   map[string][]messageRecord `json:"messages"`
}

func readBackup(path string) (*backupFile, error) {
	var b []byte
	var err error
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var bf backupFile
	if err := json.Unmarshal(b, &bf); err != nil {
		return nil, fmt.Errorf("parse backup file: %w", err)
	}
	return &bf, nil
}

// ---- http client ----

type apiClient struct {
	base  string
	token string
	hc    *http.Client
}

func newClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: 60 * time.Second},
	}
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

func (c *apiClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var eb struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		return &apiError{Status: resp.StatusCode, Body: msg}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `parley-restore
Usage:
  parley-restore -addr URL <cmd> [args]

Commands:
  version
  auth     -token <jwt>                            (saves token)
  verify   -file <backup.json|->
  restore  -file <backup.json|-> -server <uuid> [-skip-verify] [-skip-messages]
`)
	os.Exit(2)
}

// ---- commands ----

type verifyResponse struct {
	Valid  bool `json:"valid"`
	Signer *struct {
		UserID      string  `json:"user_id"`
		Username    string  `json:"username"`
		DisplayName *string `json:"display_name"`
	} `json:"signer"`
	IdentityKeyMatches bool `json:"identity_key_matches"`
}

func verify(ctx context.Context, c *apiClient, bf *backupFile) (*verifyResponse, error) {
	if len(bf.Manifest) == 0 || bf.Signature == "" {
		return nil, errors.New("backup file has no manifest/signature")
	}
	var out verifyResponse
	err := c.post(ctx, "/api/v1/exports/verify", map[string]any{
		"manifest":  bf.Manifest,
		"signature": bf.Signature,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type restoreResponse struct {
	CategoriesCreated int               `json:"categories_created"`
	ChannelsCreated   int               `json:"channels_created"`
	RolesCreated      int               `json:"roles_created"`
	RolesUpdated      int               `json:"roles_updated"`
	OverwritesApplied int               `json:"overwrites_applied"`
	ChannelIDMap      map[string]string `json:"channel_id_map"`
}

const importBatchSize = 200

// replayMessages pages each channel's history through the import endpoint
// in server-sized batches, translating exported channel ids through the
// map returned by the restore call.
func replayMessages(ctx context.Context, c *apiClient, bf *backupFile, idMap map[string]string) (int, error) {
	total := 0
	for localID, records := range bf.Messages {
		channelID, ok := idMap[localID]
		if !ok {
			fmt.Fprintf(os.Stderr, "skipping channel %s: not present in restored structure\n", localID)
			continue
		}
		for start := 0; start < len(records); start += importBatchSize {
			end := start + importBatchSize
			if end > len(records) {
				end = len(records)
			}
			var out struct {
				Imported int `json:"imported"`
			}
			err := c.post(ctx, "/api/v1/channels/"+channelID+"/import-messages", map[string]any{
				"messages": records[start:end],
			}, &out)
			if err != nil {
				return total, fmt.Errorf("channel %s batch %d: %w", localID, start/importBatchSize, err)
			}
			total += out.Imported
		}
	}
	return total, nil
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the restore API.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("parley-restore %s (%s)\n", version, buildDate)

	case "auth":
		fs := flag.NewFlagSet("auth", flag.ExitOnError)
		tok := fs.String("token", "", "access token (JWT)")
		_ = fs.Parse(flag.Args()[1:])
		if *tok == "" {
			fmt.Fprintln(os.Stderr, "need -token")
			os.Exit(1)
		}

		// parse exp from JWT
		var claims jwt.RegisteredClaims
		_, _ = jwt.ParseWithClaims(*tok, &claims, func(*jwt.Token) (any, error) { return nil, nil },
			jwt.WithoutClaimsValidation(),
		)
		exp := time.Now().Add(15 * time.Minute)
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		if err := saveToken(*tok, exp); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "verify":
		fs := flag.NewFlagSet("verify", flag.ExitOnError)
		file := fs.String("file", "", "backup file (or - for stdin)")
		_ = fs.Parse(flag.Args()[1:])
		if *file == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}

		bf, err := readBackup(*file)
		if err != nil {
			fail(err)
		}
		out, err := verify(ctx, newClient(*addr, ""), bf)
		if err != nil {
			fail(err)
		}
		printJSON(out)
		if !out.Valid {
			os.Exit(1)
		}

	case "restore":
		fs := flag.NewFlagSet("restore", flag.ExitOnError)
		file := fs.String("file", "", "backup file (or - for stdin)")
		server := fs.String("server", "", "target server id")
		skipVerify := fs.Bool("skip-verify", false, "restore without verifying the manifest signature")
		skipMessages := fs.Bool("skip-messages", false, "restore structure only")
		_ = fs.Parse(flag.Args()[1:])
		if *file == "" || *server == "" {
			fmt.Fprintln(os.Stderr, "need -file and -server")
			os.Exit(1)
		}

		bf, err := readBackup(*file)
		if err != nil {
			fail(err)
		}
		token, err := loadToken()
		if err != nil {
			fail(err)
		}
		c := newClient(*addr, token)

		if !*skipVerify {
			vr, err := verify(ctx, c, bf)
			if err != nil {
				fail(err)
			}
			if !vr.Valid {
				fail(errors.New("manifest signature is invalid (use -skip-verify to override)"))
			}
		}

		var out restoreResponse
		err = c.post(ctx, "/api/v1/servers/"+*server+"/restore", map[string]any{
			"server":                bf.Server,
			"categories":            bf.Categories,
			"channels":              bf.Channels,
			"roles":                 bf.Roles,
			"permission_overwrites": bf.Overwrites,
		}, &out)
		if err != nil {
			fail(err)
		}
		printJSON(out)

		if !*skipMessages && len(bf.Messages) > 0 {
			n, err := replayMessages(ctx, c, bf, out.ChannelIDMap)
			if err != nil {
				fail(fmt.Errorf("imported %d messages before failure: %w", n, err))
			}
			fmt.Printf("imported %d messages\n", n)
		}

	default:
		usage()
	}
}
