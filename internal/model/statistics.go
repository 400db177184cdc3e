package model

// CodeStatistics 授权码统计信息
type CodeStatistics struct {
	TotalCodes    int64 `json:"total_codes"`
	UnusedCodes   int64 `json:"unused_codes"`
	ActiveCodes   int64 `json:"active_codes"`
	ExpiredCodes  int64 `json:"expired_codes"`
	DisabledCodes int64 `json:"disabled_codes"`

	DurationCodes int64 `json:"duration_codes"`
	PointsCodes   int64 `json:"points_codes"`

	TotalDevices   int64 `json:"total_devices"`
	BoundDevices   int64 `json:"bound_devices"`
	OnlineSessions int64 `json:"online_sessions"`

	TotalDeductions int64 `json:"total_deductions"`
	PointsDeducted  int64 `json:"points_deducted"`
}

// ActivationRate 已激活授权码占比
func (s *CodeStatistics) ActivationRate() float64 {
	if s.TotalCodes == 0 {
		return 0
	}
	return float64(s.ActiveCodes+s.ExpiredCodes) / float64(s.TotalCodes)
}
