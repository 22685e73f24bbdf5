package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// SubmitRequest is the wire format for registering an attestation request.
type SubmitRequest struct {
	DocumentID interfaces.DocumentID     `json:"document_id"`
	Locator    interfaces.ContentLocator `json:"locator"`
}

// SubmitResponse carries the oracle-assigned request ID.
type SubmitResponse struct {
	RequestID string `json:"request_id"`
}

// HTTPService implements the oracle collaborator over its REST API.
// Network failures and 5xx responses are reported as transient so the client
// retries them; 4xx responses are terminal.
type HTTPService struct {
	// ServerAddr is the base URL of the oracle server.
	ServerAddr string

	// Client overrides http.DefaultClient when set.
	Client *http.Client
}

// NewHTTPService creates an oracle service talking to the given base URL.
func NewHTTPService(serverAddr string) *HTTPService {
	return &HTTPService{ServerAddr: serverAddr}
}

func (s *HTTPService) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// Submit registers an attestation request and returns the oracle-assigned
// request ID.
func (s *HTTPService) Submit(ctx context.Context, documentID interfaces.DocumentID, locator interfaces.ContentLocator) (string, error) {
	payload, err := json.Marshal(SubmitRequest{DocumentID: documentID, Locator: locator})
	if err != nil {
		return "", fmt.Errorf("encoding submit request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/attestations", s.ServerAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", interfaces.Transient(fmt.Errorf("could not request oracle submit endpoint: %w", err))
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, "submit"); err != nil {
		return "", err
	}

	var parsed SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("could not parse submit response: %w", err)
	}
	if parsed.RequestID == "" {
		return "", fmt.Errorf("oracle submit response carries no request ID")
	}

	return parsed.RequestID, nil
}

// Status reports the oracle-side state of a request.
func (s *HTTPService) Status(ctx context.Context, requestID string) (interfaces.OracleStatus, error) {
	url := fmt.Sprintf("%s/api/v1/attestations/%s", s.ServerAddr, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return interfaces.OracleStatus{}, err
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return interfaces.OracleStatus{}, interfaces.Transient(fmt.Errorf("could not request oracle status endpoint: %w", err))
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, "status"); err != nil {
		return interfaces.OracleStatus{}, err
	}

	var status interfaces.OracleStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return interfaces.OracleStatus{}, fmt.Errorf("could not parse status response: %w", err)
	}

	return status, nil
}

func checkResponse(resp *http.Response, op string) error {
	if resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := string(bodyBytes)
	if readErr != nil {
		detail = readErr.Error()
	}

	err := fmt.Errorf("oracle %s endpoint returned %d: %s", op, resp.StatusCode, detail)
	if resp.StatusCode >= 500 {
		return interfaces.Transient(err)
	}
	return err
}
