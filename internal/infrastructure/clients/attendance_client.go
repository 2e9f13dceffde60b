package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/resilience"
)

// DefaultAttendanceTimeout bounds a single attendance lookup
const DefaultAttendanceTimeout = 2 * time.Second

// attendanceResponse is the body of GET /api/v1/attendance/{employeeId}
type attendanceResponse struct {
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	Status     string `json:"status"`
}

// AttendanceClient is the AvailabilityOracle backed by the attendance service.
// Every failure is returned to the caller, which treats it as unavailable.
type AttendanceClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewAttendanceClient creates an AttendanceClient. m may be nil.
func NewAttendanceClient(baseURL string, timeout time.Duration, logger *logging.Logger, m *metrics.Metrics) *AttendanceClient {
	if timeout <= 0 {
		timeout = DefaultAttendanceTimeout
	}

	var observer resilience.StateObserver
	if m != nil {
		observer = m
	}

	return &AttendanceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: resilience.NewBreaker(resilience.DependencySettings("attendance-service"), logger.Logger, observer),
	}
}

// StatusOf implements domain.AvailabilityOracle
func (c *AttendanceClient) StatusOf(ctx context.Context, employeeID string, day time.Time) (domain.AvailabilityStatus, error) {
	return resilience.Call(ctx, c.breaker, func(ctx context.Context) (domain.AvailabilityStatus, error) {
		return c.fetch(ctx, employeeID, day)
	})
}

func (c *AttendanceClient) fetch(ctx context.Context, employeeID string, day time.Time) (domain.AvailabilityStatus, error) {
	endpoint := fmt.Sprintf("%s/api/v1/attendance/%s", c.baseURL, url.PathEscape(employeeID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Add("date", domain.DayKey(day))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch attendance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("attendance service returned status %d", resp.StatusCode)
	}

	var body attendanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode attendance response: %w", err)
	}
	if strings.TrimSpace(body.Status) == "" {
		return "", fmt.Errorf("attendance response for %s has no status", employeeID)
	}

	return domain.ParseAttendanceStatus(body.Status), nil
}
