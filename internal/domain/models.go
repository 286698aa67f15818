// Package domain defines the persistence models for cities, shops, and
// washing machines. These types are mapped with GORM and mirror the catalog
// schema the bot reads: a city contains shops, a shop contains machines and
// optionally carries the URL of the remote terminal that drives its relays.
package domain

// City is an immutable reference-data row. Shops reference it by CityID.
//
// Fields:
//   - ID: numeric primary key.
//   - Name: display name shown on the city selection keyboard.
type City struct {
	ID   int64  `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(255);not null;index"`
}

// TableName returns the database table name for City.
func (City) TableName() string { return "city" }

// Shop is a physical location inside a city. Its TerminalURL points at the
// relay terminal controlling the shop's machines; when NULL the shop's
// machines cannot be launched remotely.
//
// Fields:
//   - ID: numeric primary key.
//   - CityID: foreign key to the owning city (indexed).
//   - Name: display name shown on the shop selection keyboard.
//   - TerminalURL: optional base URL of the shop's relay terminal.
type Shop struct {
	ID          int64   `json:"id"           gorm:"primaryKey"`
	CityID      int64   `json:"city_id"      gorm:"not null;index"`
	Name        string  `json:"name"         gorm:"type:varchar(255);not null"`
	TerminalURL *string `json:"terminal_url" gorm:"type:varchar(512)"`

	City City `json:"-" gorm:"foreignKey:CityID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Shop.
func (Shop) TableName() string { return "shop" }

// Machine is a washing machine installed in a shop.
//
// Two numbering schemes coexist: MachineNumber is the label painted on the
// machine that users recognize, ControllerNumber is the relay index the
// shop's terminal addresses. Either may be unset, in which case the row ID
// stands in (see Label and Controller).
//
// Fields:
//   - ID: numeric primary key.
//   - ShopID: foreign key to the owning shop (indexed).
//   - Name: internal name of the machine.
//   - KG: load capacity in kilograms.
//   - MachineNumber: optional user-facing number.
//   - ControllerNumber: optional relay index on the terminal.
//   - CountWashes: lifetime wash counter.
type Machine struct {
	ID               int64   `json:"id"                gorm:"primaryKey"`
	ShopID           int64   `json:"shop_id"           gorm:"not null;index"`
	Name             string  `json:"name"              gorm:"type:varchar(255);not null"`
	KG               float64 `json:"kg"                gorm:"column:kg"`
	MachineNumber    *int64  `json:"machine_number"`
	ControllerNumber *int64  `json:"controller_number"`
	CountWashes      int64   `json:"count_washes"`

	Shop Shop `json:"-" gorm:"foreignKey:ShopID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Machine.
func (Machine) TableName() string { return "washing_machine" }

// Controller returns the relay index the terminal addresses for this
// machine, falling back to the row ID when ControllerNumber is unset.
func (m Machine) Controller() int64 {
	if m.ControllerNumber != nil {
		return *m.ControllerNumber
	}
	return m.ID
}

// Label returns the user-facing machine number, falling back to the row ID
// when MachineNumber is unset.
func (m Machine) Label() int64 {
	if m.MachineNumber != nil {
		return *m.MachineNumber
	}
	return m.ID
}
