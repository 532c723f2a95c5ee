// Package persistence stores the signed-in session on disk so a restarted
// client can resume it. Tokens are optionally sealed with an age
// passphrase; the rest of the file stays readable YAML.
package persistence

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/session"
)

// formatVersion is bumped when the record layout changes incompatibly.
const formatVersion = 1

// record is the on-disk layout.
type record struct {
	Version      int            `yaml:"version"`
	UserID       string         `yaml:"user_id"`
	Roles        []session.Role `yaml:"roles,omitempty"`
	TokenExpiry  time.Time      `yaml:"token_expiry"`
	Token        string         `yaml:"token,omitempty"`
	RefreshToken string         `yaml:"refresh_token,omitempty"`
	// Sealed holds the armored age ciphertext of the token pair when a
	// passphrase is configured. Token and RefreshToken are then empty.
	Sealed  string    `yaml:"sealed,omitempty"`
	SavedAt time.Time `yaml:"saved_at"`
}

// secrets is the sealed payload.
type secrets struct {
	Token        string `yaml:"token"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
}

// File is a persisted session file.
type File struct {
	path       string
	passphrase string
	workFactor int
	logger     *zerolog.Logger
}

// Option configures a File.
type Option func(*File)

// WithPassphrase seals tokens with an age scrypt recipient.
func WithPassphrase(passphrase string) Option {
	return func(f *File) {
		f.passphrase = passphrase
	}
}

// WithWorkFactor sets the scrypt work factor (log2 of N) used for sealing.
// Zero keeps the age default.
func WithWorkFactor(logN int) Option {
	return func(f *File) {
		f.workFactor = logN
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}

// New returns a File at path. A leading "~/" is expanded to the home directory.
func New(path string, opts ...Option) *File {
	f := &File{path: expandHome(path)}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.Component(f.logger, "persistence")
	return f
}

// Path returns the resolved file path.
func (f *File) Path() string {
	return f.path
}

// Save writes s. A session without a token clears the file.
func (f *File) Save(s session.Session) error {
	if s.Token == "" {
		return f.Clear()
	}

	rec := record{
		Version:     formatVersion,
		UserID:      s.UserID,
		Roles:       s.Roles,
		TokenExpiry: s.TokenExpiry,
		SavedAt:     time.Now().UTC(),
	}
	if f.passphrase != "" {
		sealed, err := f.seal(secrets{Token: s.Token, RefreshToken: s.RefreshToken})
		if err != nil {
			return err
		}
		rec.Sealed = sealed
	} else {
		rec.Token = s.Token
		rec.RefreshToken = s.RefreshToken
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.WrapParse("yaml", f.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(f.path), err)
	}

	// Write to a sibling temp file and rename so a crash never leaves a
	// truncated session behind.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.SecureFilePermissions); err != nil {
		return errors.WrapIO("write", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapIO("write", f.path, err)
	}

	f.logger.Debug().Str("path", f.path).Str("user_id", s.UserID).Msg("Session saved")
	return nil
}

// Load reads the persisted session. ok is false when no file exists.
// The returned session is Authenticated as far as the file knows; callers
// re-validate it before trusting it.
func (f *File) Load() (s session.Session, ok bool, err error) {
	data, err := os.ReadFile(f.path) // #nosec G304 -- user-configured session file
	if err != nil {
		if os.IsNotExist(err) {
			return session.New(), false, nil
		}
		return session.New(), false, errors.WrapIO("read", f.path, err)
	}

	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return session.New(), false, errors.WrapParse("yaml", f.path, err)
	}
	if rec.Version != formatVersion {
		return session.New(), false, &errors.ParseError{
			Format:  "yaml",
			Source:  f.path,
			Message: "unsupported session file version",
		}
	}

	sec := secrets{Token: rec.Token, RefreshToken: rec.RefreshToken}
	if rec.Sealed != "" {
		if f.passphrase == "" {
			return session.New(), false, errors.NewConfigError("persistence", "session file is encrypted and no passphrase is set", nil)
		}
		sec, err = f.open(rec.Sealed)
		if err != nil {
			return session.New(), false, err
		}
	}
	if sec.Token == "" {
		return session.New(), false, nil
	}

	return session.Session{
		UserID:       rec.UserID,
		Roles:        rec.Roles,
		Token:        sec.Token,
		RefreshToken: sec.RefreshToken,
		TokenExpiry:  rec.TokenExpiry,
		Status:       session.Authenticated,
	}, true, nil
}

// Clear removes the file. A missing file is not an error.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("delete", f.path, err)
	}
	return nil
}

func (f *File) seal(sec secrets) (string, error) {
	recipient, err := age.NewScryptRecipient(f.passphrase)
	if err != nil {
		return "", errors.NewConfigError("persistence", "invalid passphrase", err)
	}
	if f.workFactor > 0 {
		recipient.SetWorkFactor(f.workFactor)
	}

	plain, err := yaml.Marshal(sec)
	if err != nil {
		return "", errors.WrapParse("yaml", "sealed tokens", err)
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return "", errors.WrapIO("encrypt", f.path, err)
	}
	if _, err := w.Write(plain); err != nil {
		return "", errors.WrapIO("encrypt", f.path, err)
	}
	if err := w.Close(); err != nil {
		return "", errors.WrapIO("encrypt", f.path, err)
	}
	if err := aw.Close(); err != nil {
		return "", errors.WrapIO("encrypt", f.path, err)
	}
	return buf.String(), nil
}

func (f *File) open(sealed string) (secrets, error) {
	identity, err := age.NewScryptIdentity(f.passphrase)
	if err != nil {
		return secrets{}, errors.NewConfigError("persistence", "invalid passphrase", err)
	}

	r, err := age.Decrypt(armor.NewReader(strings.NewReader(sealed)), identity)
	if err != nil {
		return secrets{}, errors.NewConfigError("persistence", "cannot decrypt session file", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return secrets{}, errors.WrapIO("decrypt", f.path, err)
	}

	var sec secrets
	if err := yaml.Unmarshal(plain, &sec); err != nil {
		return secrets{}, errors.WrapParse("yaml", "sealed tokens", err)
	}
	return sec, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
