package history

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func finished() engine.State {
	s := engine.NewState(engine.DefaultRules(), engine.DefaultBoard())
	s.Phase = engine.PhaseGameOver
	s.RoundLimit = 3
	s.Players = []engine.Player{
		{Slot: 0, Name: "Mario", Coins: 40, Stars: 1},
		{Slot: 1, Name: "CPU 2", Coins: 90, Stars: 1, Simulated: true},
		{Slot: 2, Name: "Wario", Coins: 5, Stars: 0},
	}
	return s
}

func TestFromState(t *testing.T) {
	at := time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)
	r := FromState("12345", finished(), at)

	assert.Equal(t, "12345", r.RoomCode)
	assert.Equal(t, "BOARD_GAME", r.Mode)
	assert.Equal(t, 3, r.Rounds)
	require.Len(t, r.Standings, 3)
	assert.Equal(t, Standing{Place: 1, Slot: 1, Name: "CPU 2", Coins: 90, Stars: 1, Simulated: true}, r.Standings[0])
	assert.Equal(t, "Wario", r.Standings[2].Name)
}

func TestMemoryRecorder(t *testing.T) {
	var m MemoryRecorder
	require.NoError(t, m.Record(context.Background(), Record{RoomCode: "11111"}))
	require.NoError(t, m.Record(context.Background(), Record{RoomCode: "22222"}))

	got := m.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "22222", got[1].RoomCode)

	recent, err := m.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "22222", recent[0].RoomCode)
}

func TestGormRecorder(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("history"),
		postgres.WithUsername("party"),
		postgres.WithPassword("party"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rec, err := Open(dsn)
	require.NoError(t, err)
	defer rec.Close()

	older := FromState("10001", finished(), time.Now().Add(-time.Hour).UTC())
	newer := FromState("10002", finished(), time.Now().UTC())
	require.NoError(t, rec.Record(ctx, older))
	require.NoError(t, rec.Record(ctx, newer))

	got, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10002", got[0].RoomCode)
	require.Len(t, got[0].Standings, 3)
	assert.Equal(t, 1, got[0].Standings[0].Place)
	assert.Equal(t, "CPU 2", got[0].Standings[0].Name)
}
