package main

import (
	"flag"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"Go2NetReplay/internal/logging"
	"Go2NetReplay/pkg/pcap"
)

// remotes are the peers of the generated capture. Names match the default tag taxonomy.
var remotes = []struct {
	name string
	ip   net.IP
}{
	{"google.com", net.IPv4(142, 250, 74, 46)},
	{"doubleclick.net", net.IPv4(142, 250, 74, 2)},
	{"facebook.com", net.IPv4(157, 240, 8, 35)},
	{"fbcdn.net", net.IPv4(157, 240, 8, 20)},
	{"cloudflare.com", net.IPv4(104, 16, 132, 229)},
	{"example.org", net.IPv4(93, 184, 215, 14)},
}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	hostCount := flag.Int("n", 20, "Number of connections to generate")
	client := flag.String("client", "192.168.1.10", "Client address")
	step := flag.Duration("step", 80*time.Millisecond, "Gap between packets")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()

	log := logging.NewLogger("info", "text")

	clientIP := net.ParseIP(*client)
	if clientIP == nil {
		log.Fatalf("Invalid client address %q", *client)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	rng := rand.New(rand.NewPCG(*seed, *seed))
	hosts := make([]pcap.SynthHost, *hostCount)
	for i := range hosts {
		r := remotes[rng.IntN(len(remotes))]
		hosts[i] = pcap.SynthHost{
			Name:      r.name,
			IP:        r.ip,
			Up:        rng.IntN(400) + 50,
			Down:      rng.IntN(1400) + 50,
			Exchanges: rng.IntN(5) + 1,
		}
	}

	log.Printf("Generating %d connections into %s...", *hostCount, *outputFile)
	n, err := pcap.WriteSynthetic(f, pcap.SynthOptions{
		Client: clientIP,
		Hosts:  hosts,
		Start:  time.Now().Add(-time.Duration(*hostCount) * 10 * *step),
		Step:   *step,
		Seed:   *seed,
	})
	if err != nil {
		log.Fatalf("Failed to write capture: %v", err)
	}
	log.Printf("Successfully generated %d packets into %s.", n, *outputFile)
}
