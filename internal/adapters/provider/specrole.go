package provider

import "github.com/okian/tierlist/internal/domain/model"

// specRoles maps whitespace-free spec names to roles for rows that carry no
// explicit role. Ambiguous names (Holy, Protection, Frost) map to their most
// common role.
var specRoles = map[string]model.Role{
	"Arcane":        model.RoleDPS,
	"Fire":          model.RoleDPS,
	"Frost":         model.RoleDPS,
	"Affliction":    model.RoleDPS,
	"Demonology":    model.RoleDPS,
	"Destruction":   model.RoleDPS,
	"Assassination": model.RoleDPS,
	"Outlaw":        model.RoleDPS,
	"Subtlety":      model.RoleDPS,
	"Marksmanship":  model.RoleDPS,
	"BeastMastery":  model.RoleDPS,
	"Survival":      model.RoleDPS,
	"Elemental":     model.RoleDPS,
	"Enhancement":   model.RoleDPS,
	"Retribution":   model.RoleDPS,
	"Shadow":        model.RoleDPS,
	"Devastation":   model.RoleDPS,
	"Augmentation":  model.RoleDPS,
	"Fury":          model.RoleDPS,
	"Arms":          model.RoleDPS,
	"Havoc":         model.RoleDPS,
	"Unholy":        model.RoleDPS,
	"FrostDK":       model.RoleDPS,
	"Windwalker":    model.RoleDPS,
	"Feral":         model.RoleDPS,
	"Balance":       model.RoleDPS,

	"Protection":        model.RoleTank,
	"ProtectionWarrior": model.RoleTank,
	"ProtectionPaladin": model.RoleTank,
	"Vengeance":         model.RoleTank,
	"Blood":             model.RoleTank,
	"Brewmaster":        model.RoleTank,
	"Guardian":          model.RoleTank,

	"Holy":             model.RoleHealer,
	"HolyPaladin":      model.RoleHealer,
	"Discipline":       model.RoleHealer,
	"Mistweaver":       model.RoleHealer,
	"Restoration":      model.RoleHealer,
	"RestorationDruid": model.RoleHealer,
	"Preservation":     model.RoleHealer,
}
