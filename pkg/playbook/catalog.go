package playbook

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/entrhq/unlist/pkg/logging"
	"github.com/entrhq/unlist/pkg/types"
)

// requestTimeout bounds every catalog call so a slow API can never stall
// the run state machine.
const requestTimeout = 10 * time.Second

// envelope is the catalog's standard response wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// Summary is a catalog playbook listing entry (steps omitted).
type Summary struct {
	ID           string `json:"id"`
	BrokerID     string `json:"broker_id"`
	BrokerName   string `json:"broker_name"`
	Title        string `json:"title,omitempty"`
	Version      int    `json:"version"`
	Notes        string `json:"notes,omitempty"`
	StepsCount   int    `json:"steps_count"`
	Upvotes      int    `json:"upvotes"`
	Downvotes    int    `json:"downvotes"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	Score        int    `json:"score"`
	CreatedAt    string `json:"created_at"`
}

// Submission is the payload for contributing a draft to the community.
type Submission struct {
	BrokerID   string               `json:"broker_id"`
	BrokerName string               `json:"broker_name"`
	Title      string               `json:"title,omitempty"`
	Notes      string               `json:"notes,omitempty"`
	Steps      []types.PlaybookStep `json:"steps"`
}

// SubmitResponse is the catalog's answer to a submission.
type SubmitResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OutcomeReport tells the catalog how a playbook execution went. It never
// carries profile data, only the failing step position and error text.
type OutcomeReport struct {
	DeviceID    string `json:"device_id"`
	Outcome     string `json:"outcome"`
	FailureStep uint   `json:"failure_step,omitempty"`
	Error       string `json:"error_message,omitempty"`
	AppVersion  string `json:"app_version"`
}

// Catalog is the HTTP client for the community playbook catalog. Requests
// are signed with an Ed25519 device key (X-Signature / X-Timestamp headers)
// so the API can reject tampered submissions.
type Catalog struct {
	baseURL    string
	httpClient *http.Client
	signingKey ed25519.PrivateKey
	deviceID   string
	log        *logging.Logger
}

// NewCatalog creates a catalog client. signingKey may be nil, in which case
// requests go out unsigned (the sandbox API accepts them).
func NewCatalog(baseURL, deviceID string, signingKey ed25519.PrivateKey) *Catalog {
	log, _ := logging.NewLogger("catalog")
	return &Catalog{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		signingKey: signingKey,
		deviceID:   deviceID,
		log:        log,
	}
}

// sign computes the X-Signature and X-Timestamp headers over
// "timestamp\nmethod\npath\nbody".
func (c *Catalog) sign(method, path, body string) (sig, timestamp string) {
	timestamp = strconv.FormatInt(time.Now().Unix(), 10)
	payload := timestamp + "\n" + method + "\n" + path + "\n" + body
	raw := ed25519.Sign(c.signingKey, []byte(payload))
	return base64.StdEncoding.EncodeToString(raw), timestamp
}

func (c *Catalog) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signingKey != nil {
		sig, ts := c.sign(method, path, string(body))
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", ts)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read catalog response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("catalog returned %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode catalog envelope: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode catalog payload: %w", err)
	}
	return nil
}

// List returns the catalog's playbook summaries for one broker, best first.
func (c *Catalog) List(ctx context.Context, brokerID string) ([]Summary, error) {
	var summaries []Summary
	path := "/playbooks?broker_id=" + url.QueryEscape(brokerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// FetchBest returns the highest-scoring accepted playbook for a broker, or
// nil when the catalog has none.
func (c *Catalog) FetchBest(ctx context.Context, brokerID string) (*types.Playbook, error) {
	var pb *types.Playbook
	path := "/playbooks/best?broker_id=" + url.QueryEscape(brokerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &pb); err != nil {
		return nil, err
	}
	return pb, nil
}

// FetchDetail returns one playbook, steps and signature included.
func (c *Catalog) FetchDetail(ctx context.Context, playbookID string) (*types.Playbook, error) {
	var pb types.Playbook
	if err := c.do(ctx, http.MethodGet, "/playbooks/"+url.PathEscape(playbookID), nil, &pb); err != nil {
		return nil, err
	}
	return &pb, nil
}

// Submit contributes a validated draft to the community. The draft is
// re-validated here so an unsafe sequence can never leave the machine.
func (c *Catalog) Submit(ctx context.Context, sub Submission) (*SubmitResponse, error) {
	if err := Validate(sub.Steps); err != nil {
		return nil, err
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/playbooks", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Vote records a thumbs up or down on a community playbook. vote must be
// "up" or "down"; one device gets one vote per playbook, enforced server-side
// by device ID.
func (c *Catalog) Vote(ctx context.Context, playbookID, vote string) error {
	if vote != "up" && vote != "down" {
		return fmt.Errorf("vote must be \"up\" or \"down\", got %q", vote)
	}
	body, err := json.Marshal(map[string]string{
		"device_id": c.deviceID,
		"vote":      vote,
	})
	if err != nil {
		return fmt.Errorf("encode vote: %w", err)
	}
	path := "/playbooks/" + url.PathEscape(playbookID) + "/vote"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// ReportOutcome tells the catalog how an execution went. Fire-and-forget:
// errors are logged, never surfaced to the run.
func (c *Catalog) ReportOutcome(ctx context.Context, playbookID string, report OutcomeReport) {
	report.DeviceID = c.deviceID
	body, err := json.Marshal(report)
	if err != nil {
		return
	}
	path := "/playbooks/" + url.PathEscape(playbookID) + "/report"
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		c.log.Warnf("outcome report for playbook %s failed: %v", playbookID, err)
	}
}
