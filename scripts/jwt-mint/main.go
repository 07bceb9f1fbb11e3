// Command jwt-mint issues bearer tokens for local warehouse-graphql testing.
// HS256 tokens are signed with the server's shared secret; RS256 tokens with
// the private key behind a development OIDC issuer.
package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"
)

type mintOptions struct {
	Method      string
	Secret      string
	KeyPath     string
	KeyID       string
	Issuer      string
	Audience    string
	Subject     string
	Claim       string
	Permissions []string
	Expires     time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, now time.Time) error {
	subject := "user-1"
	if u, err := user.Current(); err == nil {
		subject = u.Username
	}

	var opts mintOptions
	fs := pflag.NewFlagSet("jwt-mint", pflag.ContinueOnError)
	fs.StringVar(&opts.Method, "method", "HS256", "Signing method (HS256, RS256)")
	fs.StringVar(&opts.Secret, "secret", os.Getenv("WGQL_SERVER_AUTH_JWT_SECRET"), "HS256 shared secret")
	fs.StringVar(&opts.KeyPath, "key", ".auth/jwt_private.pem", "RS256 private key (PEM)")
	fs.StringVar(&opts.KeyID, "kid", "local-key", "RS256 key ID")
	fs.StringVar(&opts.Issuer, "issuer", "", "JWT issuer (optional)")
	fs.StringVar(&opts.Audience, "audience", "warehouse-graphql", "JWT audience, comma-separated")
	fs.StringVar(&opts.Subject, "subject", subject, "JWT subject")
	fs.StringVar(&opts.Claim, "claim", "permissions", "Claim carrying the granted permissions")
	fs.StringSliceVar(&opts.Permissions, "permissions", []string{"MANAGE_PRODUCTS"}, "Permissions to grant")
	fs.DurationVar(&opts.Expires, "expires", time.Hour, "Token lifetime (e.g. 1h)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	signed, err := mint(opts, now)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, signed)
	return err
}

func mint(opts mintOptions, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": opts.Subject,
		"iat": now.Unix(),
		"nbf": now.Add(-time.Minute).Unix(),
		"exp": now.Add(opts.Expires).Unix(),
	}
	if opts.Issuer != "" {
		claims["iss"] = opts.Issuer
	}
	if aud := splitList(opts.Audience); len(aud) > 0 {
		claims["aud"] = aud
	}
	if opts.Claim != "" {
		claims[opts.Claim] = opts.Permissions
	}

	switch strings.ToUpper(opts.Method) {
	case "HS256":
		if opts.Secret == "" {
			return "", errors.New("--secret is required for HS256")
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.Secret))
	case "RS256":
		key, err := loadPrivateKey(opts.KeyPath)
		if err != nil {
			return "", err
		}
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = opts.KeyID
		return token.SignedString(key)
	default:
		return "", fmt.Errorf("unsupported signing method %q", opts.Method)
	}
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode private key pem")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type")
	}
	return rsaKey, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
