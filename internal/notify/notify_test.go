package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func testSummary() Summary {
	started := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	return Summary{
		Job:       "seasons",
		RunID:     "ab12cd34",
		Status:    "done",
		Started:   started,
		Finished:  started.Add(95 * time.Minute),
		Processed: 120,
		Updated:   110,
		Skipped:   40,
		Failed:    10,
		Reasons: map[string]int{
			"Episodes button not found":     3,
			"Cast member not found on page": 6,
			"Processing timeout":            1,
		},
		FailedLog: "failed_cast_members_20250901_113500.json",
	}
}

func TestSummaryBody(t *testing.T) {
	s := testSummary()
	require.Equal(t, "[realitease] seasons done: 110 updated, 10 failed", s.Subject())

	body := s.Body()
	require.Contains(t, body, "Duration:  1h35m0s\n")
	require.Contains(t, body, "     6  Cast member not found on page\n     3  Episodes button not found\n     1  Processing timeout\n")
	require.Contains(t, body, "failed_cast_members_20250901_113500.json")
}

func TestEnabled(t *testing.T) {
	require.False(t, SmtpConfig{}.Enabled())
	require.True(t, SmtpConfig{Server: "localhost", Port: 25, Address: "bot@example.com", To: []string{"me@example.com"}}.Enabled())
}

func TestSend(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	smtpServer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	if err != nil {
		t.Skipf("could not start smtp container: %v", err)
	}
	defer smtpServer.Terminate(ctx)

	smtpPort, err := smtpServer.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := smtpServer.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	err = Send(ctx, SmtpConfig{
		Server:   "localhost",
		Port:     smtpPort.Int(),
		Address:  "realitease@email.com",
		Password: "default",
		To:       []string{"bob@email.com"},
	}, testSummary())
	require.NoError(t, err)

	res, err := resty.New().R().Get(fmt.Sprintf("http://localhost:%d/messages/1.plain", webPort.Int()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "Processed: 120")
}
