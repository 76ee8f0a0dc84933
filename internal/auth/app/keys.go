package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/idx"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

var ErrNoSigningKeys = errors.New("app: AUTH_SIGNING_KEYS is required in prod")

// LoadSigningKeys builds the KeyStore from AUTH_SIGNING_KEYS. Outside prod
// an empty configuration gets a single ephemeral key, so every token dies
// with the process.
//
// Every configured key is decoded up front: a broken active key stops the
// service, a broken retired key is only logged.
func LoadSigningKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyStore, error) {
	config := strings.TrimSpace(cfg.SigningKeys)
	if config == "" {
		if cfg.IsProd() {
			return nil, ErrNoSigningKeys
		}
		entry, kid, err := EphemeralKeyEntry(cfg.Algorithm, cfg.RSABits)
		if err != nil {
			return nil, err
		}
		logger.Warn("no signing keys configured, using an ephemeral key",
			"kid", kid,
			"algorithm", cfg.Algorithm,
		)
		config = entry
	}

	ks, err := jwtx.NewKeyStore(config, cfg.ActiveKID)
	if err != nil {
		return nil, err
	}

	if _, err := ks.PrivateKey(ks.ActiveKID()); err != nil {
		return nil, fmt.Errorf("active signing key: %w", err)
	}
	for _, kid := range ks.KIDs() {
		if _, err := ks.PublicKey(kid); err != nil {
			logger.Error("signing key unusable", "kid", kid, "err", err)
		}
	}

	logger.Info("signing keys loaded", "active_kid", ks.ActiveKID(), "kids", ks.KIDs())
	return ks, nil
}

// EphemeralKeyEntry generates a key of the given kind and returns its
// configuration entry and kid.
func EphemeralKeyEntry(kind string, rsaBits int) (entry, kid string, err error) {
	der, err := cryptox.GenerateSigningKey(kind, rsaBits)
	if err != nil {
		return "", "", fmt.Errorf("generate %s key: %w", kind, err)
	}
	kid = "eph-" + strings.ToLower(idx.New().String())
	return jwtx.FormatKeyEntry(kid, der), kid, nil
}
