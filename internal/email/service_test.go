package email

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

func TestSendQueuesJob(t *testing.T) {
	client, mock := redismock.NewClientMock()
	svc := NewWithClient(client, "noreply@synco.uk", "Synco")

	mock.Regexp().ExpectLPush(queueKey, `.*`).SetVal(1)

	err := svc.Send(context.Background(), "parent@example.com", "Alice", "booking_confirmation", "Booking Confirmed", "<p>hi</p>")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendQueueFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	svc := NewWithClient(client, "noreply@synco.uk", "Synco")

	mock.Regexp().ExpectLPush(queueKey, `.*`).SetErr(context.DeadlineExceeded)

	err := svc.Send(context.Background(), "parent@example.com", "Alice", "booking_confirmation", "Booking Confirmed", "<p>hi</p>")
	require.Error(t, err)
}

func TestJobRoundTrip(t *testing.T) {
	job := Job{To: "a@b.c", Name: "A", Subject: "S", Body: "B", Type: "cancellation", Tries: 1}
	data, err := json.Marshal(job)
	require.NoError(t, err)

	var got Job
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, job.To, got.To)
	require.Equal(t, job.Type, got.Type)
	require.Equal(t, 1, got.Tries)
}
