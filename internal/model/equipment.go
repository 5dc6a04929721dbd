package model

// 设备状态
const (
	EquipmentStatusAvailable   = "available"
	EquipmentStatusMaintenance = "maintenance"
	EquipmentStatusRetired     = "retired"
)

// Equipment 设备表 — 对应 equipment
//
// 来源于设备矩阵：设备编码、所属工种、工位数。
// 绑定了设备的工序只能派给持有该设备有效资质的工人。
type Equipment struct {
	EquipmentID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"equipment_id"`
	Code         string  `gorm:"type:varchar(50);not null;uniqueIndex"          json:"code"`
	WorkCategory string  `gorm:"type:varchar(50);not null"                      json:"work_category"`
	WorkType     string  `gorm:"type:varchar(200)"                              json:"work_type,omitempty"`
	StationCount int     `gorm:"not null;default:1"                             json:"station_count"`
	HourlyCost   float64 `gorm:"type:numeric(10,2);not null;default:0"          json:"hourly_cost"`
	Status       string  `gorm:"type:varchar(20);not null;default:'available'"  json:"status"`
	BaseModel
}

func (Equipment) TableName() string { return "equipment" }
