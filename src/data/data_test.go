package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/mod-review/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEnsureParam(t *testing.T) {
	assert.Equal(t, "u:p@/db?parseTime=true", ensureParam("u:p@/db", "parseTime", "true"))
	assert.Equal(t, "u:p@/db?tls=true&parseTime=true", ensureParam("u:p@/db?tls=true", "parseTime", "true"))
	assert.Equal(t, "u:p@/db?parseTime=false", ensureParam("u:p@/db?parseTime=false", "parseTime", "true"))
}

func TestConnectMySQLRequiresDSN(t *testing.T) {
	_, err := ConnectMySQL(" ")
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT \\* FROM `settings`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("role_id", "9001").AddRow("log_channel_id", "42"))
	require.NoError(t, LoadSettings(db))
	assert.Equal(t, "9001", GetSetting("role_id"))
	assert.Empty(t, GetSetting("missing"))

	mock.ExpectExec("INSERT INTO `settings`.*ON DUPLICATE KEY UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, SaveSetting(db, "role_id", "9002"))
	assert.Equal(t, "9002", GetSetting("role_id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rdb, err := ConnectRedis(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()

	state, err := NewOAuthState(ctx, rdb, "/applications")
	require.NoError(t, err)

	redirect, err := ConsumeOAuthState(ctx, rdb, state)
	require.NoError(t, err)
	assert.Equal(t, "/applications", redirect)

	_, err = ConsumeOAuthState(ctx, rdb, state)
	assert.ErrorIs(t, err, ErrStateNotFound)

	expired, err := NewOAuthState(ctx, rdb, "/")
	require.NoError(t, err)
	mr.FastForward(6 * time.Minute)
	_, err = ConsumeOAuthState(ctx, rdb, expired)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestPublishTransition(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	ev := types.TransitionEvent{ApplicationID: "42", Action: types.ActionReject, Reviewer: "AdminBob", Reason: "Low score", Committed: true}
	id, err := PublishTransition(ctx, rdb, 1000, ev)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := rdb.XRange(ctx, StreamTransition, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "42", msgs[0].Values["application_id"])

	var got types.TransitionEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["event"].(string)), &got))
	assert.Equal(t, "Low score", got.Reason)
}

func TestConnectRedisBadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "not a url")
	assert.Error(t, err)
}
