// Package credentials resolves the warehouse service account (and an optional
// source token) from a fixed location. Values are read once per process and
// never rendered in logs or errors
package credentials

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/platform/validate"

	"github.com/rs/zerolog"
)

// Provider resolves the process credential
type Provider interface {
	Resolve(ctx context.Context) (Credential, error)
}

// ServiceAccount is the subset of a Google service account key the pipeline checks
type ServiceAccount struct {
	Type         string `json:"type" validate:"required,eq=service_account"`
	ProjectID    string `json:"project_id" validate:"required"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key" validate:"required"`
	ClientEmail  string `json:"client_email" validate:"required,email"`
	TokenURI     string `json:"token_uri" validate:"omitempty,url"`
}

// Credential is a resolved, immutable credential bundle
type Credential struct {
	account     ServiceAccount
	raw         []byte
	sourceToken string
	origin      string
}

// Parse validates a service account key document; origin names where it came from (never the content)
func Parse(data []byte, origin string) (Credential, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return Credential{}, perr.CredentialMissingf("credential at %s is not valid JSON", origin)
	}
	if err := validate.Struct(sa); err != nil {
		field := ""
		if e, ok := perr.As(err); ok {
			field = e.Field()
		}
		return Credential{}, perr.WithField(
			perr.CredentialMissingf("credential at %s is malformed: %s is missing or invalid", origin, field), field)
	}
	return Credential{account: sa, raw: append([]byte(nil), data...), origin: origin}, nil
}

// WithSourceToken returns a copy carrying an optional bearer token for the source
func (c Credential) WithSourceToken(tok string) Credential {
	c.sourceToken = strings.TrimSpace(tok)
	return c
}

// JSON returns a copy of the raw service account key for client libraries
func (c Credential) JSON() []byte { return append([]byte(nil), c.raw...) }

// ProjectID returns the project the service account belongs to
func (c Credential) ProjectID() string { return c.account.ProjectID }

// SourceToken returns the optional source bearer token
func (c Credential) SourceToken() string { return c.sourceToken }

// Origin describes where the credential was read from
func (c Credential) Origin() string { return c.origin }

// IsZero reports whether the credential is empty
func (c Credential) IsZero() bool { return len(c.raw) == 0 }

// String never includes key material
func (c Credential) String() string {
	return fmt.Sprintf("credential(project=%s origin=%s redacted)", c.account.ProjectID, c.origin)
}

// GoString keeps %#v from dumping fields
func (c Credential) GoString() string { return c.String() }

// MarshalJSON emits only non-secret metadata
func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"project_id":   c.account.ProjectID,
		"origin":       c.origin,
		"source_token": c.sourceToken != "",
	})
}

// MarshalZerologObject emits only non-secret metadata
func (c Credential) MarshalZerologObject(e *zerolog.Event) {
	e.Str("project_id", c.account.ProjectID).Str("origin", c.origin).Bool("source_token", c.sourceToken != "")
}

// Dir reads service-account.json (and optionally source-token) from a fixed directory
type Dir struct {
	Path      string
	File      string // default service-account.json
	TokenFile string // default source-token; absent file is fine

	readFile func(string) ([]byte, error)
}

// Resolve reads and validates the directory bundle
func (d Dir) Resolve(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	read := d.readFile
	if read == nil {
		read = os.ReadFile
	}
	file := d.File
	if file == "" {
		file = "service-account.json"
	}
	p := filepath.Join(d.Path, file)

	data, err := read(p)
	if err != nil {
		if stderrs.Is(err, fs.ErrNotExist) {
			return Credential{}, perr.CredentialMissingf("no credential file at %s", p)
		}
		return Credential{}, perr.Wrapf(err, perr.ErrorCodeCredentialMissing, "read credential file %s", p)
	}
	cred, err := Parse(data, p)
	if err != nil {
		return Credential{}, err
	}

	tokFile := d.TokenFile
	if tokFile == "" {
		tokFile = "source-token"
	}
	if tok, err := read(filepath.Join(d.Path, tokFile)); err == nil {
		cred = cred.WithSourceToken(string(tok))
	} else if !stderrs.Is(err, fs.ErrNotExist) {
		return Credential{}, perr.Wrapf(err, perr.ErrorCodeCredentialMissing, "read source token in %s", d.Path)
	}
	return cred, nil
}

// Env reads the key JSON from an env var, or a key file path from another env var
type Env struct {
	JSONVar  string // default GOOGLE_APPLICATION_CREDENTIALS_JSON
	PathVar  string // default GOOGLE_APPLICATION_CREDENTIALS
	TokenVar string // default STOCKPIPE_SOURCE_TOKEN

	getenv   func(string) string
	readFile func(string) ([]byte, error)
}

func (e Env) vars() (jsonVar, pathVar, tokenVar string) {
	jsonVar, pathVar, tokenVar = e.JSONVar, e.PathVar, e.TokenVar
	if jsonVar == "" {
		jsonVar = "GOOGLE_APPLICATION_CREDENTIALS_JSON"
	}
	if pathVar == "" {
		pathVar = "GOOGLE_APPLICATION_CREDENTIALS"
	}
	if tokenVar == "" {
		tokenVar = "STOCKPIPE_SOURCE_TOKEN"
	}
	return
}

// Configured reports whether either env var is set
func (e Env) Configured() bool {
	getenv := e.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	j, p, _ := e.vars()
	return strings.TrimSpace(getenv(j)) != "" || strings.TrimSpace(getenv(p)) != ""
}

// Resolve reads the credential from the environment
func (e Env) Resolve(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	getenv, read := e.getenv, e.readFile
	if getenv == nil {
		getenv = os.Getenv
	}
	if read == nil {
		read = os.ReadFile
	}
	jsonVar, pathVar, tokenVar := e.vars()

	var (
		cred Credential
		err  error
	)
	switch {
	case strings.TrimSpace(getenv(jsonVar)) != "":
		cred, err = Parse([]byte(getenv(jsonVar)), "env:"+jsonVar)
	case strings.TrimSpace(getenv(pathVar)) != "":
		p := strings.TrimSpace(getenv(pathVar))
		data, rerr := read(p)
		if rerr != nil {
			return Credential{}, perr.Wrapf(rerr, perr.ErrorCodeCredentialMissing, "read credential file %s from %s", p, pathVar)
		}
		cred, err = Parse(data, p)
	default:
		return Credential{}, perr.CredentialMissingf("neither %s nor %s is set", jsonVar, pathVar)
	}
	if err != nil {
		return Credential{}, err
	}
	return cred.WithSourceToken(getenv(tokenVar)), nil
}

// Static returns a fixed credential or error; useful for tests and dry runs
type Static struct {
	Cred Credential
	Err  error
}

// Resolve returns the fixed values
func (s Static) Resolve(context.Context) (Credential, error) { return s.Cred, s.Err }

// Cached resolves the wrapped provider at most once and replays the outcome,
// including a failure, for the rest of the process
type Cached struct {
	p    Provider
	once sync.Once
	cred Credential
	err  error
}

// NewCached wraps p with once semantics
func NewCached(p Provider) *Cached { return &Cached{p: p} }

// Resolve returns the cached outcome, resolving on first use
func (c *Cached) Resolve(ctx context.Context) (Credential, error) {
	c.once.Do(func() {
		c.cred, c.err = c.p.Resolve(ctx)
		if c.err != nil {
			logger.C(ctx).Error().Str("code", perr.CodeOf(c.err).String()).Err(c.err).Msg("credential resolution failed")
			return
		}
		logger.C(ctx).Info().Object("credential", c.cred).Msg("credential resolved")
	})
	return c.cred, c.err
}
