package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/database"
	"Go2NetReplay/internal/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	// Define command-line flags
	mode := flag.String("mode", "api", "Query mode: 'api' to query via HTTP API, 'direct' to query ClickHouse directly.")
	apiAddr := flag.String("addr", "http://localhost:8080", "HTTP API base URL")
	kind := flag.String("kind", "", "Aggregate to fetch in api mode (hosts, tags, timeline, summary, clients, frequency); the full overview when empty.")
	frame := flag.String("frame", "", "Frame to query; the player position when empty.")
	sessionID := flag.String("session", "", "Session to summarize in direct mode (optional).")
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	log := logging.NewLogger("info", "text")
	log.Infof("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		queryViaAPI(*apiAddr, *kind, *frame, log)
	case "direct":
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		directQueryClickHouse(cfg, *sessionID, log)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

// --- API Query Logic ---
func queryViaAPI(base, kind, frame string, log *logrus.Logger) {
	path := "/api/v1/overview"
	if kind != "" {
		path = "/api/v1/aggregate/" + url.PathEscape(kind)
	}
	apiURL := base + path
	if frame != "" {
		apiURL += "?frame=" + url.QueryEscape(frame)
	}

	log.Infof("Sending request to %s", apiURL)
	resp, err := http.Get(apiURL)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		log.Warn("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}
	fmt.Println(prettyJSON.String())
}

// --- Direct ClickHouse Query Logic ---
func directQueryClickHouse(cfg *config.Config, sessionID string, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := database.Connect(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}
	defer conn.Close()

	query := `
		SELECT
			SessionID,
			count() AS Records,
			uniqExact(Host) AS Hosts,
			min(Created) AS FirstSeen,
			max(Created) AS LastSeen
		FROM replay_records FINAL`
	var args []interface{}
	if sessionID != "" {
		query += "\n\t\tWHERE SessionID = ?"
		args = append(args, sessionID)
	}
	query += "\n\t\tGROUP BY SessionID\n\t\tORDER BY LastSeen DESC"

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}
	defer rows.Close()

	log.Info("--- Stored Sessions (Direct) ---")
	var foundResult bool
	for rows.Next() {
		foundResult = true
		var (
			session   string
			records   uint64
			hosts     uint64
			firstSeen time.Time
			lastSeen  time.Time
		)
		if err := rows.Scan(&session, &records, &hosts, &firstSeen, &lastSeen); err != nil {
			log.WithError(err).Warn("Error scanning row")
			continue
		}
		fmt.Printf("Session: %s\n", session)
		fmt.Printf("  Records: %d\n", records)
		fmt.Printf("  Hosts: %d\n", hosts)
		fmt.Printf("  Span: %s .. %s\n", firstSeen.Format(time.RFC3339), lastSeen.Format(time.RFC3339))
		fmt.Println("---------------------")
	}

	if !foundResult {
		log.Info("No data found for the specified criteria.")
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Warn("An error occurred during row iteration")
	}
}
