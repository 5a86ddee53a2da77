// Package auth implements Eidetica's keyed-permission authorization
// model (spec §4.5): Permission ordering and clamping, AuthKey storage
// in a database's "_settings.auth" Doc, SigKey resolution (direct and
// delegated), and the commit-time signature/permission validator.
package auth

import "fmt"

// Level is the three-tier permission class. Admin outranks Write
// outranks Read regardless of priority.
type Level int

const (
	LevelRead Level = iota
	LevelWrite
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelRead:
		return "Read"
	case LevelWrite:
		return "Write"
	case LevelAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Permission is a level plus, for Write and Admin, a priority: lower
// priority value means greater authority within the level. Read carries
// no meaningful priority (always treated as 0).
type Permission struct {
	Level    Level
	Priority uint32
}

// Read is the single Read permission value.
func Read() Permission { return Permission{Level: LevelRead} }

// Write returns a Write permission at the given priority.
func Write(priority uint32) Permission { return Permission{Level: LevelWrite, Priority: priority} }

// Admin returns an Admin permission at the given priority.
func Admin(priority uint32) Permission { return Permission{Level: LevelAdmin, Priority: priority} }

// Greater reports whether p outranks other: higher Level wins; within
// the same Level, the lower Priority value wins.
func (p Permission) Greater(other Permission) bool {
	if p.Level != other.Level {
		return p.Level > other.Level
	}
	return p.Priority < other.Priority
}

// GreaterOrEqual reports whether p outranks or equals other.
func (p Permission) GreaterOrEqual(other Permission) bool {
	return p == other || p.Greater(other)
}

// Less reports whether p is outranked by other.
func (p Permission) Less(other Permission) bool { return other.Greater(p) }

// CanWrite reports whether p is at least Write-level.
func (p Permission) CanWrite() bool { return p.Level >= LevelWrite }

// CanAdmin reports whether p is Admin-level.
func (p Permission) CanAdmin() bool { return p.Level == LevelAdmin }

func (p Permission) String() string {
	if p.Level == LevelRead {
		return "Read"
	}
	return fmt.Sprintf("%s(%d)", p.Level, p.Priority)
}

// PermissionBounds clamps a resolved permission to a maximum and,
// optionally, a minimum: used at each delegation hop to prevent a
// parent database from handing out more authority than it intends.
type PermissionBounds struct {
	Max Permission
	Min *Permission
}

// NewBounds returns bounds with just a maximum.
func NewBounds(max Permission) PermissionBounds { return PermissionBounds{Max: max} }

// WithMin returns a copy of b with the given minimum set.
func (b PermissionBounds) WithMin(min Permission) PermissionBounds {
	b.Min = &min
	return b
}

// Valid reports whether the bounds are well formed: min, if present,
// must not exceed max.
func (b PermissionBounds) Valid() bool {
	if b.Min == nil {
		return true
	}
	return !b.Min.Greater(b.Max)
}

// Clamp applies the clamping rules of spec §4.5:
//  1. If bounds are invalid (min > max), apply max only.
//  2. If p > max, return max.
//  3. Else if min is set and p < min, return min.
//  4. Else return p unchanged.
//
// Clamp is idempotent: Clamp(Clamp(p, b), b) == Clamp(p, b).
func (b PermissionBounds) Clamp(p Permission) Permission {
	if !b.Valid() {
		if p.Greater(b.Max) {
			return b.Max
		}
		return p
	}
	if p.Greater(b.Max) {
		return b.Max
	}
	if b.Min != nil && p.Less(*b.Min) {
		return *b.Min
	}
	return p
}

// CanDelegateWith reports whether a key holding delegatingPermission is
// authorized to hand out bounds b: b must be valid and its maximum must
// not exceed the delegating key's own permission.
func CanDelegateWith(delegatingPermission Permission, b PermissionBounds) bool {
	return b.Valid() && !b.Max.Greater(delegatingPermission)
}
