package model

// ── 工序枚举 ──

// 工序类别
const (
	StepCategoryCutting    = "cutting"
	StepCategorySilkscreen = "silkscreen"
	StepCategoryPrep       = "prep"
	StepCategorySewing     = "sewing"
	StepCategoryInspection = "inspection"
)

// 技能需求
const (
	SkillSewing  = "sewing"
	SkillGeneral = "general"
)

// Product 产品表 — 对应 products
type Product struct {
	ProductID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"product_id"`
	Name          string `gorm:"type:varchar(100);not null"                     json:"name"`
	VersionName   string `gorm:"type:varchar(50);not null;default:'v1.0'"       json:"version_name"`
	VersionNumber int    `gorm:"not null;default:1"                             json:"version_number"`
	IsDefault     bool   `gorm:"not null;default:true"                          json:"is_default"`
	BaseModel

	// 关联
	Steps []ProductStep `gorm:"foreignKey:ProductID" json:"steps,omitempty"`
}

func (Product) TableName() string { return "products" }

// ProductStep 产品工序表 — 对应 product_steps
//
// Dependencies 保存同一产品内前置工序的 step_id 列表，
// 排产前由 Step Graph Builder 校验无环且全部存在。
type ProductStep struct {
	StepID              string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"step_id"`
	ProductID           string      `gorm:"type:uuid;not null"                             json:"product_id"`
	StepCode            string      `gorm:"type:varchar(20);not null"                      json:"step_code"` // 如 CFA1
	ExternalID          *int        `json:"external_id,omitempty"`
	Sequence            int         `gorm:"not null"                                       json:"sequence"`
	Category            string      `gorm:"type:varchar(20);not null"                      json:"category"` // cutting | silkscreen | prep | sewing | inspection
	Component           string      `gorm:"type:varchar(100)"                              json:"component,omitempty"`
	TaskName            string      `gorm:"type:varchar(200);not null"                     json:"task_name"`
	TimePerPieceSeconds int         `gorm:"not null;default:0"                             json:"time_per_piece_seconds"`
	RequiredSkill       string      `gorm:"type:varchar(20);not null;default:'general'"    json:"required_skill"` // sewing | general
	EquipmentID         *string     `gorm:"type:uuid"                                      json:"equipment_id,omitempty"`
	Dependencies        StringArray `gorm:"type:text[];not null;default:'{}'"              json:"dependencies"`
	BaseModel

	// 关联
	Equipment *Equipment `gorm:"foreignKey:EquipmentID;references:EquipmentID" json:"equipment,omitempty"`
}

func (ProductStep) TableName() string { return "product_steps" }
