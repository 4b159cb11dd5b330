package config

import (
	"os"
	"path/filepath"
)

// Paths are the on-disk locations Kairos reads and writes. All of them live
// under one base directory, ~/.kairos unless KAIROS_HOME says otherwise.
type Paths struct {
	Base        string
	Config      string // config.yaml
	Credentials string // OAuth client secrets and tokens
	Logs        string
	Data        string // checkpoint database
}

// ResolvePaths locates the base directory and derives the rest from it.
func ResolvePaths() (Paths, error) {
	if base := os.Getenv("KAIROS_HOME"); base != "" {
		return PathsUnder(base), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}
	return PathsUnder(filepath.Join(home, ".kairos")), nil
}

// PathsUnder lays out the standard tree below base.
func PathsUnder(base string) Paths {
	return Paths{
		Base:        base,
		Config:      filepath.Join(base, "config.yaml"),
		Credentials: filepath.Join(base, "credentials"),
		Logs:        filepath.Join(base, "logs"),
		Data:        filepath.Join(base, "data"),
	}
}

// EnsureDirs creates the directories of p with owner-only permissions.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Credentials, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath is checkpoint.path when set, else data/kairos.db.
func (p Paths) DatabasePath(cfg CheckpointConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(p.Data, "kairos.db")
}

// CredentialPath resolves a relative credential file name against the
// credentials directory.
func (p Paths) CredentialPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.Credentials, name)
}
