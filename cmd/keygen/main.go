// Command keygen prints a fresh AUTH_SIGNING_KEYS entry.
//
//	keygen -alg EdDSA -kid 2026-10
//
// Append the output to AUTH_SIGNING_KEYS with a '|' separator and set
// AUTH_ACTIVE_KID once every instance has the new key.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

func main() {
	alg := flag.String("alg", cryptox.KeyRS256, "key algorithm: RS256, ES256 or EdDSA")
	bits := flag.Int("bits", cryptox.MinRSABits, "RSA modulus size (RS256 only)")
	kid := flag.String("kid", "", "key id (default: <alg>-<yyyymmdd>)")
	pem := flag.Bool("pem", false, "also print the private key as PEM on stderr")
	flag.Parse()

	if *kid == "" {
		*kid = strings.ToLower(*alg) + "-" + time.Now().UTC().Format("20060102")
	}
	if strings.Contains(*kid, jwtx.KeyKIDSeparator) || strings.Contains(*kid, jwtx.KeyEntrySeparator) {
		log.Fatalf("kid must not contain %q or %q", jwtx.KeyKIDSeparator, jwtx.KeyEntrySeparator)
	}

	der, err := cryptox.GenerateSigningKey(*alg, *bits)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	fmt.Println(jwtx.FormatKeyEntry(*kid, der))
	if *pem {
		_, _ = os.Stderr.Write(cryptox.PrivateKeyPEM(der))
	}
}
