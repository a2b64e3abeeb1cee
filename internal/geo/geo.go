// Package geo resolves location attributes from MaxMind GeoLite2 databases.
package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"pinger/internal/models"
)

// Locator looks addresses up in an optional City and an optional ASN database
type Locator struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// Open opens the databases at the given paths. An empty path disables that
// database; at least one must be set.
func Open(cityPath, asnPath string) (*Locator, error) {
	if cityPath == "" && asnPath == "" {
		return nil, errors.New("no GeoIP database configured")
	}

	l := &Locator{}
	if cityPath != "" {
		db, err := geoip2.Open(cityPath)
		if err != nil {
			return nil, fmt.Errorf("open city database: %w", err)
		}
		l.city = db
	}
	if asnPath != "" {
		db, err := geoip2.Open(asnPath)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("open ASN database: %w", err)
		}
		l.asn = db
	}
	return l, nil
}

// Locate returns the location of address. Host names are not resolved.
func (l *Locator) Locate(address string) (models.Location, bool) {
	ip := net.ParseIP(address)
	if ip == nil {
		return models.Location{}, false
	}

	var loc models.Location
	if l.city != nil {
		if rec, err := l.city.City(ip); err == nil && rec != nil {
			loc.Country = rec.Country.IsoCode
			if len(rec.Subdivisions) > 0 {
				loc.State = rec.Subdivisions[0].Names["en"]
			}
			loc.City = rec.City.Names["en"]
		}
	}
	if l.asn != nil {
		if rec, err := l.asn.ASN(ip); err == nil && rec != nil && rec.AutonomousSystemNumber != 0 {
			loc.Network = fmt.Sprintf("AS%d", rec.AutonomousSystemNumber)
		}
	}
	return loc, !loc.IsZero()
}

// Close releases the databases
func (l *Locator) Close() error {
	var errs []error
	if l.city != nil {
		errs = append(errs, l.city.Close())
	}
	if l.asn != nil {
		errs = append(errs, l.asn.Close())
	}
	return errors.Join(errs...)
}
