package service

import (
	"errors"
	"time"

	"auth-code-system/internal/config"
	"auth-code-system/internal/model"
	"auth-code-system/internal/util"

	"gorm.io/gorm"
)

// SessionManager 在线会话与心跳。会话存活的判定统一为：
// 有效、未被踢下线、令牌未到期。
type SessionManager struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewSessionManager(db *gorm.DB, cfg *config.Config) *SessionManager {
	return &SessionManager{db: db, cfg: cfg}
}

// CreateSession 创建会话，只落库令牌哈希。同一 (设备, 授权码) 已有存活会话时
// 原地刷新：换哈希、重置时间、清除强制下线标记，不产生重复行。
func (m *SessionManager) CreateSession(deviceID, codeID, tenantID uint, token, ip, userAgent string) (*model.OnlineSession, error) {
	now := time.Now()
	hash := util.HashToken(token)

	var expire *time.Time
	if m.cfg.TokenTTLHours > 0 {
		t := now.Add(time.Duration(m.cfg.TokenTTLHours) * time.Hour)
		expire = &t
	}

	var session model.OnlineSession
	err := m.db.Where("device_id = ? AND code_id = ? AND is_valid = ?", deviceID, codeID, true).
		First(&session).Error
	switch {
	case err == nil:
		session.TokenHash = hash
		session.IsValid = true
		session.ForceOffline = false
		session.LoginTime = now
		session.LastHeartbeat = now
		session.TokenExpireTime = expire
		session.IP = ip
		session.UserAgent = userAgent
		if err := m.db.Save(&session).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		session = model.OnlineSession{
			DeviceID:        deviceID,
			TenantID:        tenantID,
			CodeID:          codeID,
			TokenHash:       hash,
			IsValid:         true,
			LoginTime:       now,
			LastHeartbeat:   now,
			TokenExpireTime: expire,
			IP:              ip,
			UserAgent:       userAgent,
		}
		if err := m.db.Create(&session).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &session, nil
}

// findByToken 用令牌哈希找有效会话
func (m *SessionManager) findByToken(token string) (*model.OnlineSession, error) {
	var session model.OnlineSession
	err := m.db.Where("token_hash = ? AND is_valid = ?", util.HashToken(token), true).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonSessionNotFound, "会话不存在或已失效")
		}
		return nil, err
	}
	return &session, nil
}

// checkLiveness 统一存活判定。发现令牌到期时立即落库置为无效。
func (m *SessionManager) checkLiveness(session *model.OnlineSession) error {
	if session.ForceOffline {
		return stale(ReasonForcedOffline, "会话已被强制下线")
	}
	if session.TokenExpireTime != nil && time.Now().After(*session.TokenExpireTime) {
		if err := m.db.Model(session).Update("is_valid", false).Error; err != nil {
			return err
		}
		session.IsValid = false
		return stale(ReasonSessionExpired, "会话令牌已过期")
	}
	return nil
}

// UpdateHeartbeat 心跳：唯一的客户端高频路径，单查单写。
func (m *SessionManager) UpdateHeartbeat(token string) (*model.OnlineSession, error) {
	session, err := m.findByToken(token)
	if err != nil {
		return nil, err
	}
	if err := m.checkLiveness(session); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := m.db.Model(session).Update("last_heartbeat", now).Error; err != nil {
		return nil, err
	}
	session.LastHeartbeat = now
	return session, nil
}

// VerifySession 会话有效性查询，判定与心跳一致但不刷新心跳时间
func (m *SessionManager) VerifySession(token string) (*model.OnlineSession, error) {
	session, err := m.findByToken(token)
	if err != nil {
		return nil, err
	}
	if err := m.checkLiveness(session); err != nil {
		return nil, err
	}
	return session, nil
}

// CheckTimeout 后台清理：把心跳早于超时线的有效会话批量置为无效，
// 返回受影响条数。只做 valid→invalid 单向翻转，并发重复执行无害。
func (m *SessionManager) CheckTimeout() (int64, error) {
	cutoff := time.Now().Add(-time.Duration(m.cfg.HeartbeatTimeoutSeconds) * time.Second)
	result := m.db.Model(&model.OnlineSession{}).
		Where("is_valid = ? AND force_offline = ? AND last_heartbeat < ?", true, false, cutoff).
		Update("is_valid", false)
	return result.RowsAffected, result.Error
}

// ForceOffline 强制下线，幂等；只在会话不存在时报错
func (m *SessionManager) ForceOffline(sessionID uint) error {
	var session model.OnlineSession
	if err := m.db.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(ReasonSessionNotFound, "会话不存在")
		}
		return err
	}

	return m.db.Model(&session).Updates(map[string]interface{}{
		"force_offline": true,
		"is_valid":      false,
	}).Error
}

// Logout 客户端按令牌主动下线
func (m *SessionManager) Logout(token string) error {
	session, err := m.findByToken(token)
	if err != nil {
		return err
	}
	return m.db.Model(session).Updates(map[string]interface{}{
		"force_offline": true,
		"is_valid":      false,
	}).Error
}

// EnforceSingleLogin 单点登录：一次批量更新把同一授权码下除当前会话外的
// 有效会话全部踢下线。被顶掉的设备在下一次心跳时发现失败。
func (m *SessionManager) EnforceSingleLogin(codeID, currentSessionID uint) (int64, error) {
	result := m.db.Model(&model.OnlineSession{}).
		Where("code_id = ? AND id <> ? AND is_valid = ?", codeID, currentSessionID, true).
		Updates(map[string]interface{}{
			"force_offline": true,
			"is_valid":      false,
		})
	return result.RowsAffected, result.Error
}

// ListOnline 管理端在线会话列表
func (m *SessionManager) ListOnline(tenantID uint, page, pageSize int) ([]model.OnlineSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	db := m.db.Model(&model.OnlineSession{}).Where("is_valid = ?", true)
	if tenantID != 0 {
		db = db.Where("tenant_id = ?", tenantID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []model.OnlineSession
	offset := (page - 1) * pageSize
	if err := db.Order("last_heartbeat DESC").Offset(offset).Limit(pageSize).Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}
