package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/review"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func application() model.SubmittedApplication {
	return model.SubmittedApplication{
		ID: "DOG-1700000000000-42",
		Certificate: &model.Certificate{
			Name:        "rabies.pdf",
			ContentType: "application/pdf",
			ObjectKey:   "certificates/abc/rabies.pdf",
		},
	}
}

func TestDispatchEnqueuesReviewTask(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	store := review.NewMemoryStore()

	require.NoError(t, NewDispatcher(client, store).Dispatch(ctx, application()))

	require.Len(t, client.tasks, 1)
	require.Equal(t, ReviewCertificateTask, client.tasks[0].Type())
	job, err := ParseReviewTask(client.tasks[0])
	require.NoError(t, err)
	require.Equal(t, "DOG-1700000000000-42", job.ApplicationID)
	require.Equal(t, "certificates/abc/rabies.pdf", job.ObjectKey)

	rv, err := store.Get(ctx, job.ApplicationID)
	require.NoError(t, err)
	require.Equal(t, model.ReviewQueued, rv.Status)
}

func TestDispatchMarksFailedWhenEnqueueFails(t *testing.T) {
	ctx := context.Background()
	store := review.NewMemoryStore()

	err := NewDispatcher(&fakeClient{err: errors.New("redis down")}, store).Dispatch(ctx, application())
	require.ErrorContains(t, err, "redis down")

	rv, err := store.Get(ctx, application().ID)
	require.NoError(t, err)
	require.Equal(t, model.ReviewFailed, rv.Status)
}

func TestDispatchSkipsApplicationsWithoutCertificate(t *testing.T) {
	client := &fakeClient{}
	require.NoError(t, NewDispatcher(client, review.NewMemoryStore()).Dispatch(context.Background(), model.SubmittedApplication{ID: "DOG-1-1"}))
	require.Empty(t, client.tasks)
}
