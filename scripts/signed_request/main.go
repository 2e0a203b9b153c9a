// Command signed_request issues an HMAC-signed call against a running
// Agent API instance. Useful when debugging agent integrations: it
// computes the timestamp and signature headers the same way the server
// verifies them.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chroma-cms/agent-api/internal/auth"
)

func main() {
	var (
		token   = flag.String("token", os.Getenv("AGENT_API_TOKEN"), "full API token (ck_live_{id}.{secret})")
		method  = flag.String("method", http.MethodGet, "HTTP method")
		rawURL  = flag.String("url", "", "full request URL")
		body    = flag.String("body", "", "request body (JSON)")
		timeout = flag.Duration("timeout", 15*time.Second, "request timeout")
	)
	flag.Parse()

	if *token == "" || *rawURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	parsed, err := url.Parse(*rawURL)
	if err != nil {
		log.Fatalf("invalid url: %v", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := auth.ComputeSignature(*token, *method, parsed.Path, timestamp, []byte(*body))

	req, err := http.NewRequest(*method, *rawURL, strings.NewReader(*body))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+*token)
	req.Header.Set(auth.HeaderTimestamp, timestamp)
	req.Header.Set(auth.HeaderSignature, signature)
	if *body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	fmt.Printf("%s %s -> %s\n", *method, parsed.Path, resp.Status)
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		log.Fatalf("read response: %v", err)
	}
	fmt.Println()
}
