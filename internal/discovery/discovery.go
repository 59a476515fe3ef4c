// discovery.go — Network discovery of debuggable browser endpoints.
// Probes a host×port matrix for debug HTTP endpoints, ranks page targets by
// "likely the app under development" heuristics, and produces human-readable
// recommendations. A probe timeout is absence, not an error: unreachable
// candidates are dropped silently and never fail the pass.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Instance is one discovered debuggable page target. Rebuilt from scratch on
// every pass; never persisted.
type Instance struct {
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	TargetID   string   `json:"target_id"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Browser    string   `json:"browser,omitempty"`
	Confidence int      `json:"confidence"`
	Flags      []string `json:"flags,omitempty"`
}

// Result is the discovery output shape.
type Result struct {
	Instances       []Instance `json:"instances"`
	TotalFound      int        `json:"totalFound"`
	Recommendations []string   `json:"recommendations"`
	Troubleshooting []string   `json:"troubleshooting,omitempty"`
}

// versionInfo is the endpoint-identity probe response (/json/version).
type versionInfo struct {
	Browser string `json:"Browser"`
}

// targetInfo is one entry of the target-list probe response (/json/list).
type targetInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// devPorts are development-server port conventions worth a confidence boost
// when they appear in a page URL.
var devPorts = map[string]bool{
	"3000": true, "3001": true, "4000": true, "4200": true, "5000": true,
	"5173": true, "8000": true, "8080": true, "9000": true,
}

// frameworkTokens in a title or URL suggest an application under active
// development rather than a stray tab.
var frameworkTokens = []string{
	"react", "next", "nuxt", "vite", "vue", "angular", "svelte", "webpack", "dev server",
}

// Service probes candidate endpoints. Safe for concurrent use.
type Service struct {
	client *http.Client
	log    *logrus.Entry
}

// NewService creates a discovery service. Per-probe deadlines come from the
// request context, so the shared client carries no global timeout.
func NewService(log *logrus.Entry) *Service {
	return &Service{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:       (&net.Dialer{}).DialContext,
				DisableKeepAlives: true,
			},
		},
		log: log,
	}
}

// Discover probes the full host×port cross product concurrently. Each
// candidate gets two probes (endpoint identity and target list), each under
// its own timeout; one hung probe never delays or cancels its siblings, and
// the pass settles within roughly one worst-case probe timeout.
func (s *Service) Discover(ctx context.Context, hosts []string, ports []int, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	tracer := otel.Tracer("beacon/discovery")
	ctx, span := tracer.Start(ctx, "discovery.pass")
	defer span.End()

	type candidateResult struct {
		instances []Instance
	}

	results := make(chan candidateResult, len(hosts)*len(ports))
	var wg sync.WaitGroup

	for _, host := range hosts {
		for _, port := range ports {
			wg.Add(1)
			go func(host string, port int) {
				defer wg.Done()
				results <- candidateResult{instances: s.probeCandidate(ctx, host, port, timeout)}
			}(host, port)
		}
	}
	wg.Wait()
	close(results)

	var instances []Instance
	for r := range results {
		instances = append(instances, r.instances...)
	}

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].Confidence != instances[j].Confidence {
			return instances[i].Confidence > instances[j].Confidence
		}
		if instances[i].Host != instances[j].Host {
			return instances[i].Host < instances[j].Host
		}
		return instances[i].Port < instances[j].Port
	})

	span.SetAttributes(
		attribute.Int("discovery.candidates", len(hosts)*len(ports)),
		attribute.Int("discovery.found", len(instances)),
	)
	s.log.WithFields(logrus.Fields{
		"candidates": len(hosts) * len(ports),
		"found":      len(instances),
	}).Info("discovery pass complete")

	result := Result{
		Instances:       instances,
		TotalFound:      len(instances),
		Recommendations: buildRecommendations(instances),
	}
	if len(instances) == 0 {
		result.Troubleshooting = troubleshootingSteps()
	}
	return result
}

// IsPortAvailable runs the endpoint-identity probe alone: one lightweight
// request under its own timeout, boolean result.
func (s *Service) IsPortAvailable(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = time.Second
	}
	_, ok := s.probeVersion(ctx, host, port, timeout)
	return ok
}

// probeCandidate runs both probes for one host:port concurrently and
// assembles scored page instances. Any failure is silence.
func (s *Service) probeCandidate(ctx context.Context, host string, port int, timeout time.Duration) []Instance {
	var (
		version   versionInfo
		versionOK bool
		targets   []targetInfo
		targetsOK bool
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		version, versionOK = s.probeVersion(ctx, host, port, timeout)
	}()
	go func() {
		defer wg.Done()
		targets, targetsOK = s.probeTargets(ctx, host, port, timeout)
	}()
	wg.Wait()

	if !targetsOK {
		return nil
	}

	var instances []Instance
	for _, target := range targets {
		if target.Type != "page" {
			continue
		}
		inst := Instance{
			Host:     host,
			Port:     port,
			TargetID: target.ID,
			URL:      target.URL,
			Title:    target.Title,
		}
		if versionOK {
			inst.Browser = version.Browser
		}
		inst.Confidence, inst.Flags = score(target, host)
		instances = append(instances, inst)
	}
	return instances
}

func (s *Service) probeVersion(ctx context.Context, host string, port int, timeout time.Duration) (versionInfo, bool) {
	var info versionInfo
	if !s.getJSON(ctx, fmt.Sprintf("http://%s/json/version", net.JoinHostPort(host, fmt.Sprint(port))), timeout, &info) {
		return versionInfo{}, false
	}
	return info, true
}

func (s *Service) probeTargets(ctx context.Context, host string, port int, timeout time.Duration) ([]targetInfo, bool) {
	var targets []targetInfo
	if !s.getJSON(ctx, fmt.Sprintf("http://%s/json/list", net.JoinHostPort(host, fmt.Sprint(port))), timeout, &targets) {
		return nil, false
	}
	return targets, true
}

// getJSON fetches and decodes one probe URL under its own timeout.
func (s *Service) getJSON(ctx context.Context, probeURL string, timeout time.Duration, into any) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false // timeout or refusal is absence, not an error
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(into) == nil
}

// score applies the likely-application heuristics: +10 for development-port
// conventions or framework tokens in title/url, +5 more when the page also
// lives on a local development origin.
func score(target targetInfo, debugHost string) (int, []string) {
	var flags []string
	likelyApp := false

	lowerTitle := strings.ToLower(target.Title)
	lowerURL := strings.ToLower(target.URL)
	for _, token := range frameworkTokens {
		if strings.Contains(lowerTitle, token) || strings.Contains(lowerURL, token) {
			likelyApp = true
			flags = append(flags, "framework:"+strings.ReplaceAll(token, " ", "-"))
			break
		}
	}

	pageHost := ""
	if parsed, err := url.Parse(target.URL); err == nil {
		pageHost = parsed.Hostname()
		if devPorts[parsed.Port()] {
			likelyApp = true
			flags = append(flags, "dev-port:"+parsed.Port())
		}
	}

	confidence := 0
	if likelyApp {
		confidence += 10
		if isLocalHost(pageHost) || isLocalHost(debugHost) {
			confidence += 5
			flags = append(flags, "local-dev")
		}
	}
	return confidence, flags
}

func isLocalHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// buildRecommendations renders the top pick and alternates.
func buildRecommendations(instances []Instance) []string {
	if len(instances) == 0 {
		return []string{"No debuggable browser instances found."}
	}

	top := instances[0]
	recs := []string{
		fmt.Sprintf("Top pick: %q (%s) on %s:%d, confidence %d.",
			top.Title, top.URL, top.Host, top.Port, top.Confidence),
	}
	for _, alt := range instances[1:] {
		recs = append(recs, fmt.Sprintf("Alternate: %q (%s) on %s:%d, confidence %d.",
			alt.Title, alt.URL, alt.Host, alt.Port, alt.Confidence))
	}
	return recs
}

// troubleshootingSteps is returned only for an empty pass.
func troubleshootingSteps() []string {
	return []string{
		"Start a browser with remote debugging enabled, e.g.:",
		`  google-chrome --remote-debugging-port=9222`,
		`  chromium --remote-debugging-port=9222 --user-data-dir=/tmp/beacon-profile`,
		`  "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome" --remote-debugging-port=9222`,
		"Verify the endpoint responds: curl http://localhost:9222/json/version",
		"If the browser runs on another machine, bind with --remote-debugging-address=0.0.0.0 and check firewall rules.",
	}
}
