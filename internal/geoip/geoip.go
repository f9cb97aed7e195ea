// Package geoip resolves remote addresses to positions for imported captures.
package geoip

import (
	"errors"
	"io/fs"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the geographic metadata of an address.
type Location struct {
	Country string
	City    string
	Lat     float64
	Lon     float64
}

// Locator resolves an address. ok is false when nothing useful is known.
type Locator interface {
	Locate(ip net.IP) (Location, bool)
}

// Reader provides lookups from a MaxMind city database.
type Reader struct {
	db *geoip2.Reader
}

// NewReader opens an MMDB file. It returns nil, nil when path is empty or missing so that
// imports degrade to unlocated records.
func NewReader(path string) (*Reader, error) {
	if path == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Locate implements Locator. Private and loopback addresses are never located.
func (r *Reader) Locate(ip net.IP) (Location, bool) {
	if r == nil || r.db == nil || ip == nil || isPrivateIP(ip) {
		return Location{}, false
	}
	record, err := r.db.City(ip)
	if err != nil {
		return Location{}, false
	}
	loc := Location{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
		Lat:     record.Location.Latitude,
		Lon:     record.Location.Longitude,
	}
	if loc.Lat == 0 && loc.Lon == 0 {
		return Location{}, false
	}
	return loc, true
}

// Close releases the database.
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Static is a fixed address table, useful for tests and lab captures.
type Static map[string]Location

// Locate implements Locator.
func (s Static) Locate(ip net.IP) (Location, bool) {
	loc, ok := s[ip.String()]
	return loc, ok
}

// Chain tries each locator in order.
type Chain []Locator

// Locate implements Locator.
func (c Chain) Locate(ip net.IP) (Location, bool) {
	for _, l := range c {
		if l == nil {
			continue
		}
		if loc, ok := l.Locate(ip); ok {
			return loc, true
		}
	}
	return Location{}, false
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() || ip.IsUnspecified()
}
