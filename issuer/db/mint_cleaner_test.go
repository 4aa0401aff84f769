package db

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpassport/passport-node/issuer/store"
)

func TestMintCleaner(t *testing.T) {
	t.Run("initial cleanup removes expired pending mints", func(t *testing.T) {
		journal := newTestJournal(t)
		require.NoError(t, journal.RecordPreparedMint(&store.PassportMint{MintAddress: "expired", FeePayer: "p", Kind: "nft"}))
		require.NoError(t, journal.RecordPreparedMint(&store.PassportMint{MintAddress: "live", FeePayer: "p", Kind: "nft"}))
		ageMint(t, journal, "expired", 2*time.Hour)

		cleaner := NewMintCleaner(journal, time.Hour, time.Hour, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cleaner.Start(ctx)
		defer cleaner.Stop()

		got, err := journal.GetMint("expired")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = journal.GetMint("live")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("scheduled cleanup", func(t *testing.T) {
		journal := newTestJournal(t)
		cleaner := NewMintCleaner(journal, 20*time.Millisecond, time.Hour, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cleaner.Start(ctx)
		defer cleaner.Stop()

		require.NoError(t, journal.RecordPreparedMint(&store.PassportMint{MintAddress: "late", FeePayer: "p", Kind: "nft"}))
		ageMint(t, journal, "late", 2*time.Hour)

		assert.Eventually(t, func() bool {
			got, err := journal.GetMint("late")
			return err == nil && got == nil
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("nothing to delete", func(t *testing.T) {
		journal := newTestJournal(t)
		require.NoError(t, journal.RecordPreparedMint(&store.PassportMint{MintAddress: "fresh", FeePayer: "p", Kind: "nft"}))

		cleaner := NewMintCleaner(journal, time.Hour, time.Hour, zerolog.New(zerolog.NewTestWriter(t)))
		deleted, err := cleaner.performCleanup()
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("journal error", func(t *testing.T) {
		cleaner := NewMintCleaner(NewJournal(nil), time.Hour, time.Hour, zerolog.New(zerolog.NewTestWriter(t)))
		_, err := cleaner.performCleanup()
		assert.Error(t, err)
	})
}
