package drivers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		driver  string
		wantErr string
	}{
		{name: "default", driver: ""},
		{name: "memory", driver: Memory},
		{name: "file", driver: File},
		{name: "redis", driver: Redis},
		{name: "postgres without url", driver: Postgres, wantErr: "no database url provided"},
		{name: "unknown", driver: "floppy", wantErr: `unknown storage driver "floppy"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := &core.Config{SecretKey: "secret"}
			conf.Storage.Driver = tt.driver
			conf.Storage.Path = filepath.Join(t.TempDir(), "session.json")
			conf.Storage.RedisAddr = mr.Addr()
			conf.Storage.Namespace = "test"

			st, closer, err := Open(ctx, conf)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer closer.Close()

			require.NoError(t, st.Set(ctx, storage.KeyToken, "tok"))
			assert.Equal(t, "tok", storage.GetString(ctx, st, storage.KeyToken))
		})
	}
}
