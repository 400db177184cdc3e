package service

// 业务失败分类
type ErrorCategory string

const (
	CategoryNotFound     ErrorCategory = "not_found"
	CategoryInvalidInput ErrorCategory = "invalid_input"
	CategoryConflict     ErrorCategory = "conflict"
	CategoryForbidden    ErrorCategory = "forbidden"
	CategoryStale        ErrorCategory = "stale"
	CategoryUnsupported  ErrorCategory = "unsupported"
)

// 机器可读的失败原因
const (
	ReasonCodeNotFound       = "code_not_found"
	ReasonTenantNotFound     = "tenant_not_found"
	ReasonDeviceNotFound     = "device_not_found"
	ReasonSessionNotFound    = "session_not_found"
	ReasonBadFingerprint     = "bad_fingerprint"
	ReasonBadAmount          = "bad_amount"
	ReasonBadTimeUnit        = "bad_time_unit"
	ReasonBadStatus          = "bad_status"
	ReasonDeviceLimit        = "device_limit_reached"
	ReasonRebindLimit        = "rebind_limit_reached"
	ReasonRebindSameDevice   = "rebind_same_device"
	ReasonDeviceNotBound     = "device_not_bound"
	ReasonInsufficientPoints = "insufficient_points"
	ReasonBlacklisted        = "blacklisted"
	ReasonTenantDisabled     = "tenant_disabled"
	ReasonCodeDisabled       = "code_disabled"
	ReasonCodeUnused         = "code_unused"
	ReasonCodeExpired        = "code_expired"
	ReasonPointsExhausted    = "points_exhausted"
	ReasonSessionExpired     = "session_expired"
	ReasonForcedOffline      = "forced_offline"
	ReasonDeviceDisabled     = "device_disabled"
	ReasonWrongBilling       = "wrong_billing_model"
	ReasonNotAdjustable      = "not_adjustable"
)

// Error 业务失败。预期内的失败一律以此类型返回，不用panic；
// 只有存储故障等意外才走普通error。
type Error struct {
	Category ErrorCategory `json:"category"`
	Reason   string        `json:"reason"`
	Message  string        `json:"message"` // 给人看的中文说明
}

func (e *Error) Error() string {
	return e.Reason + ": " + e.Message
}

func newError(cat ErrorCategory, reason, message string) *Error {
	return &Error{Category: cat, Reason: reason, Message: message}
}

func notFound(reason, message string) *Error {
	return newError(CategoryNotFound, reason, message)
}

func invalidInput(reason, message string) *Error {
	return newError(CategoryInvalidInput, reason, message)
}

func conflict(reason, message string) *Error {
	return newError(CategoryConflict, reason, message)
}

func forbidden(reason, message string) *Error {
	return newError(CategoryForbidden, reason, message)
}

func stale(reason, message string) *Error {
	return newError(CategoryStale, reason, message)
}

func unsupported(reason, message string) *Error {
	return newError(CategoryUnsupported, reason, message)
}
