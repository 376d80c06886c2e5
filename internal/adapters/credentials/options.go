package credentials

import (
	"stockpipe/internal/platform/config"
)

// Options selects where the credential is read from
type Options struct {
	Dir       string `env:"DIR" validate:"required"`
	File      string `env:"FILE" validate:"required"`
	TokenFile string `env:"TOKEN_FILE"`
}

// FromConfig reads CORE_CREDENTIALS_* (pass cfg.Prefix("CORE_CREDENTIALS_"))
func FromConfig(cfg config.Conf) Options {
	return Options{
		Dir:       cfg.MayString("DIR", "/app/credentials"),
		File:      cfg.MayString("FILE", "service-account.json"),
		TokenFile: cfg.MayString("TOKEN_FILE", "source-token"),
	}
}

// New returns the process provider: the original env variables win when set,
// otherwise the fixed directory. The choice is made once, here
func New(opt Options) *Cached {
	if env := (Env{}); env.Configured() {
		return NewCached(env)
	}
	return NewCached(Dir{Path: opt.Dir, File: opt.File, TokenFile: opt.TokenFile})
}
