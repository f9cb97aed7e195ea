// Package aggregate reduces event views into chart-ready summaries.
// None of the reducers hold state.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"Go2NetReplay/internal/engine/playhead"
	"Go2NetReplay/internal/model"
)

// OtherTag is the slice for events that match no tag.
const OtherTag = "other"

// HostTotal is one bar of the by-host chart.
type HostTotal struct {
	Host     string `json:"host"`
	Incoming int64  `json:"incoming"`
	Outgoing int64  `json:"outgoing"`
}

// Total returns incoming plus outgoing bytes.
func (h HostTotal) Total() int64 {
	return h.Incoming + h.Outgoing
}

// ByHost sums the bytes moved so far per host, largest first, keeping at most limit hosts.
// A non-positive limit keeps all hosts.
func ByHost(views []playhead.EventView, limit int) []HostTotal {
	index := make(map[string]int)
	var totals []HostTotal
	for _, v := range views {
		i, ok := index[v.Host]
		if !ok {
			i = len(totals)
			index[v.Host] = i
			totals = append(totals, HostTotal{Host: v.Host})
		}
		totals[i].Incoming += v.IncomingBytes
		totals[i].Outgoing += v.OutgoingBytes
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Total() != totals[j].Total() {
			return totals[i].Total() > totals[j].Total()
		}
		return totals[i].Host < totals[j].Host
	})
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	if totals == nil {
		totals = []HostTotal{}
	}
	return totals
}

// TagSlice is one slice of the by-tag chart.
type TagSlice struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// ByTag counts events per tag by host membership.
//
// When category is non-empty only tags of that category are considered. Each event counts
// towards the first tag, in taxonomy order, listing its host; events matching none count
// as OtherTag, which is always the last slice. Tags with no events are omitted. Without
// tags or events the result is a single OtherTag slice of 100.
func ByTag(views []playhead.EventView, tags []model.Tag, category string) []TagSlice {
	tags = TagsInCategory(tags, category)
	if len(tags) == 0 || len(views) == 0 {
		return []TagSlice{{Type: OtherTag, Value: 100}}
	}

	owner := make(map[string]int)
	for i := len(tags) - 1; i >= 0; i-- {
		for _, d := range tags[i].Domains {
			owner[d] = i
		}
	}

	counts := make([]int, len(tags))
	other := 0
	for _, v := range views {
		if i, ok := owner[v.Host]; ok {
			counts[i]++
		} else {
			other++
		}
	}

	slices := make([]TagSlice, 0, len(tags)+1)
	for i, t := range tags {
		if counts[i] > 0 {
			slices = append(slices, TagSlice{Type: t.Name, Value: counts[i]})
		}
	}
	return append(slices, TagSlice{Type: OtherTag, Value: other})
}

// TagsInCategory returns the tags whose category is named category. An empty category
// returns all tags.
func TagsInCategory(tags []model.Tag, category string) []model.Tag {
	if category == "" {
		return tags
	}
	var out []model.Tag
	for _, t := range tags {
		if t.Category != nil && t.Category.Name == category {
			out = append(out, t)
		}
	}
	return out
}

// TagHosts returns the union of the domains of the named tags, for use as a view host filter.
func TagHosts(tags []model.Tag, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	seen := make(map[string]struct{})
	var hosts []string
	for _, t := range tags {
		if _, ok := wanted[t.Name]; !ok {
			continue
		}
		for _, d := range t.Domains {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			hosts = append(hosts, d)
		}
	}
	if hosts == nil {
		// Selected tags without domains match nothing.
		hosts = []string{""}
	}
	return hosts
}

// Bucket is one point of the session overview line chart.
type Bucket struct {
	Time  string    `json:"time"`
	Date  time.Time `json:"date"`
	Value int       `json:"value"`
}

// ByTimeBucket counts events per wall-clock bucket of width, oldest first. Each event
// belongs to the bucket boundary following its timestamp.
func ByTimeBucket(events []*model.Event, width time.Duration) []Bucket {
	if width <= 0 {
		width = 10 * time.Second
	}
	index := make(map[int64]int)
	buckets := []Bucket{}
	for _, ev := range events {
		date := ev.Timestamp.Truncate(width).Add(width)
		key := date.UnixNano()
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Time: date.Format("15:04:05"), Date: date})
		}
		buckets[i].Value++
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date.Before(buckets[j].Date)
	})
	return buckets
}

// Summary holds the headline statistics of a view.
type Summary struct {
	Events            int     `json:"events"`
	Active            int     `json:"active"`
	IncomingBytes     int64   `json:"incoming_bytes"`
	OutgoingBytes     int64   `json:"outgoing_bytes"`
	TotalBytes        int64   `json:"total_bytes"`
	AverageDistanceKm float64 `json:"average_distance_km"`
}

// Summarize computes the headline statistics of views.
func Summarize(views []playhead.EventView) Summary {
	var s Summary
	var distance float64
	for _, v := range views {
		s.Events++
		if v.Active {
			s.Active++
		}
		s.IncomingBytes += v.IncomingBytes
		s.OutgoingBytes += v.OutgoingBytes
		distance += v.DistanceKm
	}
	s.TotalBytes = s.IncomingBytes + s.OutgoingBytes
	if s.Events > 0 {
		s.AverageDistanceKm = distance / float64(s.Events)
	}
	return s
}

// Client is a distinct client address with its display hue.
type Client struct {
	Address string `json:"address"`
	Hue     int    `json:"hue"`
}

// Clients lists the distinct client addresses of events in first-seen order.
func Clients(events []*model.Event) []Client {
	seen := make(map[string]struct{})
	clients := []Client{}
	for _, ev := range events {
		if ev.ClientAddress == "" {
			continue
		}
		if _, ok := seen[ev.ClientAddress]; ok {
			continue
		}
		seen[ev.ClientAddress] = struct{}{}
		clients = append(clients, Client{Address: ev.ClientAddress, Hue: Hue(ev.ClientAddress)})
	}
	return clients
}

// Hue maps a client address to a stable colour hue in [0, 360).
func Hue(address string) int {
	sum := 0
	for _, r := range address {
		sum += int(r)
	}
	return sum % 360
}

// HostCount is the number of events seen for a host.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// HostFrequency counts events per host, most frequent first.
func HostFrequency(views []playhead.EventView) []HostCount {
	index := make(map[string]int)
	counts := []HostCount{}
	for _, v := range views {
		i, ok := index[v.Host]
		if !ok {
			i = len(counts)
			index[v.Host] = i
			counts = append(counts, HostCount{Host: v.Host})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Host < counts[j].Host
	})
	return counts
}

// DisplayBytes formats a byte count for humans.
func DisplayBytes(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1<<20:
		return fmt.Sprintf("%.2f Kb", float64(bytes)/1024)
	case bytes < 1<<30:
		return fmt.Sprintf("%.2f Mb", float64(bytes)/(1<<20))
	default:
		return fmt.Sprintf("%.2f Gb", float64(bytes)/(1<<30))
	}
}
