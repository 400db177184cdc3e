package service

import (
	"testing"
	"time"

	"auth-code-system/internal/model"
	"auth-code-system/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, m *SessionManager, deviceID, codeID uint) (*model.OnlineSession, string) {
	t.Helper()
	token := util.GenerateSessionToken()
	session, err := m.CreateSession(deviceID, codeID, 1, token, "1.1.1.1", "test-agent")
	require.NoError(t, err)
	return session, token
}

func TestCreateSessionStoresOnlyHash(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	session, token := newSession(t, sessions, 1, 1)
	assert.NotEqual(t, token, session.TokenHash)
	assert.Equal(t, util.HashToken(token), session.TokenHash)
	require.NotNil(t, session.TokenExpireTime)
	assert.True(t, session.TokenExpireTime.After(time.Now()))
}

func TestCreateSessionRefreshesInPlace(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	first, oldToken := newSession(t, sessions, 1, 1)
	second, newToken := newSession(t, sessions, 1, 1)

	// 同一 (设备, 授权码) 不产生第二行
	assert.Equal(t, first.ID, second.ID)
	var count int64
	require.NoError(t, db.Model(&model.OnlineSession{}).
		Where("device_id = ? AND code_id = ?", 1, 1).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// 旧令牌立即失效
	_, err := sessions.VerifySession(oldToken)
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonSessionNotFound, berr.Reason)
	_, err = sessions.VerifySession(newToken)
	require.NoError(t, err)
}

func TestUpdateHeartbeat(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	session, token := newSession(t, sessions, 1, 1)
	stale := time.Now().Add(-10 * time.Minute)
	require.NoError(t, db.Model(session).Update("last_heartbeat", stale).Error)

	updated, err := sessions.UpdateHeartbeat(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), updated.LastHeartbeat, 5*time.Second)

	_, err = sessions.UpdateHeartbeat("no-such-token")
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonSessionNotFound, berr.Reason)
}

func TestHeartbeatOnExpiredToken(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	session, token := newSession(t, sessions, 1, 1)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(session).Update("token_expire_time", past).Error)

	_, err := sessions.UpdateHeartbeat(token)
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonSessionExpired, berr.Reason)

	// 过期判定已落库，之后按不存在处理
	_, err = sessions.UpdateHeartbeat(token)
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonSessionNotFound, berr.Reason)
}

func TestCheckTimeoutFlipsExactSet(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	fresh, _ := newSession(t, sessions, 1, 1)
	expired, _ := newSession(t, sessions, 2, 2)
	kicked, _ := newSession(t, sessions, 3, 3)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(expired).Update("last_heartbeat", old).Error)
	require.NoError(t, db.Model(kicked).Updates(map[string]interface{}{
		"last_heartbeat": old,
		"force_offline":  true,
		"is_valid":       false,
	}).Error)

	affected, err := sessions.CheckTimeout()
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	var reloaded model.OnlineSession
	require.NoError(t, db.First(&reloaded, expired.ID).Error)
	assert.False(t, reloaded.IsValid)
	assert.False(t, reloaded.ForceOffline)

	reloaded = model.OnlineSession{}
	require.NoError(t, db.First(&reloaded, fresh.ID).Error)
	assert.True(t, reloaded.IsValid)

	// 重复执行无事发生
	affected, err = sessions.CheckTimeout()
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)
}

func TestForceOfflineIdempotent(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	session, token := newSession(t, sessions, 1, 1)
	require.NoError(t, sessions.ForceOffline(session.ID))
	require.NoError(t, sessions.ForceOffline(session.ID))

	_, err := sessions.VerifySession(token)
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonSessionNotFound, berr.Reason)

	err = sessions.ForceOffline(99999)
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonSessionNotFound, berr.Reason)
}

func TestLogout(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	session, token := newSession(t, sessions, 1, 1)
	require.NoError(t, sessions.Logout(token))

	var reloaded model.OnlineSession
	require.NoError(t, db.First(&reloaded, session.ID).Error)
	assert.False(t, reloaded.IsValid)

	var berr *Error
	require.ErrorAs(t, sessions.Logout(token), &berr)
	assert.Equal(t, ReasonSessionNotFound, berr.Reason)
}

func TestEnforceSingleLogin(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	// 同一授权码三台设备，外加另一张卡的一个会话
	a, _ := newSession(t, sessions, 1, 7)
	b, _ := newSession(t, sessions, 2, 7)
	current, currentToken := newSession(t, sessions, 3, 7)
	other, _ := newSession(t, sessions, 4, 8)

	kicked, err := sessions.EnforceSingleLogin(7, current.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, kicked)

	var reloaded model.OnlineSession
	for _, id := range []uint{a.ID, b.ID} {
		reloaded = model.OnlineSession{}
		require.NoError(t, db.First(&reloaded, id).Error)
		assert.False(t, reloaded.IsValid)
		assert.True(t, reloaded.ForceOffline)
	}

	// 当前会话与别的授权码不受影响
	_, err = sessions.VerifySession(currentToken)
	require.NoError(t, err)
	reloaded = model.OnlineSession{}
	require.NoError(t, db.First(&reloaded, other.ID).Error)
	assert.True(t, reloaded.IsValid)
}

func TestListOnline(t *testing.T) {
	db := setupTest(t)
	_, _, _, sessions := newServices(t, db)

	newSession(t, sessions, 1, 1)
	invalid, _ := newSession(t, sessions, 2, 2)
	require.NoError(t, db.Model(&model.OnlineSession{}).Where("id = ?", invalid.ID).
		Update("is_valid", false).Error)

	list, total, err := sessions.ListOnline(0, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.EqualValues(t, 1, list[0].DeviceID)

	_, total, err = sessions.ListOnline(99, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}
