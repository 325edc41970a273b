package notification

import (
	"net/mail"
	"strings"

	"bookwire/internal/constants"
	"bookwire/internal/logger"
)

// CCConfig is process-wide CC policy, loaded once at cold start and
// read-only afterwards.
type CCConfig struct {
	Enabled      bool
	Emails       []string
	DefaultEmail string
}

const (
	envCCEnabled = "NOTIFICATION_CC_ENABLED"
	envCCEmails  = "NOTIFICATION_CC_EMAILS"
	envCCEmail   = "NOTIFICATION_CC_EMAIL"
)

// LookupEnv matches os.LookupEnv; injectable for tests.
type LookupEnv func(key string) (string, bool)

// LoadCCConfig reads CC policy from the environment. The multi-value
// variable wins over the single-value one. A variable that is present but
// blank is an explicit "CC off" signal; an unset variable or one whose
// entries are all invalid falls back to the default address.
func LoadCCConfig(lookup LookupEnv, log logger.Logger) CCConfig {
	cfg := CCConfig{
		Enabled:      true,
		DefaultEmail: constants.DefaultCCFallbackEmail,
	}

	if v, ok := lookup(envCCEnabled); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "false", "0", "no":
			cfg.Enabled = false
			return cfg
		}
	}

	raw, present := lookup(envCCEmails)
	if !present {
		raw, present = lookup(envCCEmail)
	}

	if present && strings.TrimSpace(raw) == "" {
		// Explicitly blank is distinct from unset: the operator asked for
		// no CC at all, so do not fall back to the default.
		cfg.Enabled = false
		return cfg
	}

	valid, dropped := parseEmailList(raw)
	for _, d := range dropped {
		log.Warnw("Dropping invalid CC address", "address", d)
	}

	if len(valid) == 0 {
		log.Warnw("No valid CC addresses configured, falling back to default",
			"default", cfg.DefaultEmail,
		)
		valid = []string{cfg.DefaultEmail}
	}

	cfg.Emails = valid
	return cfg
}

func parseEmailList(raw string) (valid []string, dropped []string) {
	for _, part := range strings.Split(raw, ",") {
		entry := strings.ToLower(strings.TrimSpace(part))
		if entry == "" {
			continue
		}
		if _, err := mail.ParseAddress(entry); err != nil {
			dropped = append(dropped, entry)
			continue
		}
		valid = append(valid, entry)
	}
	return valid, dropped
}

// EffectiveCCEmails returns the CC list minus the primary recipient, compared
// case- and whitespace-insensitively, so nobody gets the mail twice.
func EffectiveCCEmails(cfg CCConfig, primaryRecipient string) []string {
	if !cfg.Enabled {
		return nil
	}

	primary := strings.ToLower(strings.TrimSpace(primaryRecipient))
	out := make([]string, 0, len(cfg.Emails))
	for _, email := range cfg.Emails {
		if strings.ToLower(strings.TrimSpace(email)) == primary {
			continue
		}
		out = append(out, email)
	}
	return out
}
