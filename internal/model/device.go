package model

import "time"

// 设备状态
const (
	DeviceStatusActive      = "active"
	DeviceStatusInactive    = "inactive"
	DeviceStatusBlacklisted = "blacklisted"
)

// DeviceInfo 客户端上报的硬件信息，用于计算设备指纹
type DeviceInfo struct {
	CPUID       string `json:"cpu_id"`
	BoardSerial string `json:"board_serial"`
	DiskSerial  string `json:"disk_serial"`
	MACAddress  string `json:"mac_address"`
	Platform    string `json:"platform"`
	DeviceName  string `json:"device_name"`
	OSVersion   string `json:"os_version"`
}

// Device 设备记录。指纹唯一，换绑/解绑只改 BoundCodeID，记录本身永不删除，
// 保留审计链路。
type Device struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	TenantID    uint   `json:"tenant_id" gorm:"index;not null"`
	Fingerprint string `json:"fingerprint" gorm:"uniqueIndex;not null"` // 64位十六进制
	BoundCodeID *uint  `json:"bound_code_id" gorm:"index"`              // 当前绑定的授权码，可为空

	CPUID       string `json:"cpu_id"`
	BoardSerial string `json:"board_serial"`
	DiskSerial  string `json:"disk_serial"`
	MACAddress  string `json:"mac_address"`
	Platform    string `json:"platform"`
	DeviceName  string `json:"device_name"`
	OSVersion   string `json:"os_version"`

	Status        string     `json:"status" gorm:"default:'active'"`
	LastHeartbeat *time.Time `json:"last_heartbeat"`
	LastIP        string     `json:"last_ip"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Device) TableName() string {
	return "devices"
}

// ApplyInfo 用上报的硬件信息刷新设备记录
func (d *Device) ApplyInfo(info DeviceInfo, ip string) {
	d.CPUID = info.CPUID
	d.BoardSerial = info.BoardSerial
	d.DiskSerial = info.DiskSerial
	d.MACAddress = info.MACAddress
	d.Platform = info.Platform
	d.DeviceName = info.DeviceName
	d.OSVersion = info.OSVersion
	if ip != "" {
		d.LastIP = ip
	}
}
