package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// tlsConfigName is the name used to register custom TLS configs with the MySQL driver.
const tlsConfigName = "warehouse-graphql"

// DSN returns a go-sql-driver/mysql data source name. Times are parsed and kept in UTC.
func (d *DatabaseConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	mc.DBName = d.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.TLSConfig = d.tlsParam()
	return mc.FormatDSN()
}

func (d *DatabaseConfig) tlsParam() string {
	switch d.TLS.Mode {
	case "skip-verify":
		return "skip-verify"
	case "verify-full":
		if d.TLS.CAFile != "" {
			return tlsConfigName
		}
		return "true"
	default:
		return ""
	}
}

// RegisterTLS registers a custom CA bundle with the MySQL driver when verify-full
// is combined with ca_file. It is a no-op otherwise.
func (d *DatabaseConfig) RegisterTLS() error {
	if d.tlsParam() != tlsConfigName {
		return nil
	}
	pem, err := os.ReadFile(d.TLS.CAFile)
	if err != nil {
		return fmt.Errorf("read database CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return fmt.Errorf("database CA file %q contains no certificates", d.TLS.CAFile)
	}
	serverName := d.TLS.ServerName
	if serverName == "" {
		serverName = d.Host
	}
	return mysql.RegisterTLSConfig(tlsConfigName, &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	})
}
