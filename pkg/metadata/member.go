package metadata

import "github.com/pkg/errors"

var (
	ErrAlreadyOwned    = errors.New("member is already owned by another member")
	ErrForeignMember   = errors.New("member belongs to a different module")
	ErrTokenInUse      = errors.New("token is already assigned to a different member")
	ErrInvalidToken    = errors.New("invalid metadata token")
	ErrNotRegistrable  = errors.New("member cannot be registered in a module")
	ErrUnassignedToken = errors.New("member has no assigned token")
)

// Member is anything addressable by a metadata token.
type Member interface {
	Token() Token
	// Module returns the module the member is registered in, or nil.
	Module() *Module
}

// NamedMember is a member with a simple name.
type NamedMember interface {
	Member
	Name() string
}

// TypeDefOrRef is a type definition, type reference or type specification.
type TypeDefOrRef interface {
	NamedMember
	Namespace() string
	FullName() string
	// ToTypeSignature returns the signature referencing the type.
	ToTypeSignature(isValueType bool) TypeSignature
	isTypeDefOrRef()
}

// ResolutionScope is where a type reference is resolved: a module, an
// assembly reference, a module reference or an enclosing type reference.
type ResolutionScope interface {
	Member
	isResolutionScope()
}

// MethodDefOrRef is a method definition or a method member reference.
type MethodDefOrRef interface {
	NamedMember
	MethodSignature() *MethodSignature
	isMethodDefOrRef()
}

// FieldDescriptor is a field definition or a field member reference.
type FieldDescriptor interface {
	NamedMember
	FieldSignature() *FieldSignature
	isFieldDescriptor()
}

// MemberRefParent is the parent of a member reference.
type MemberRefParent interface {
	Member
	isMemberRefParent()
}

// CustomAttributeType is the constructor of a custom attribute.
type CustomAttributeType interface {
	MethodDefOrRef
	isCustomAttributeType()
}

// HasCustomAttributes is a member that can carry custom attributes.
type HasCustomAttributes interface {
	Member
	CustomAttributes() []*CustomAttribute
	AddCustomAttribute(ca *CustomAttribute) error
}

// entity is the state every registrable member shares: the assigned
// token, the module handle and whether some other member owns it.
type entity struct {
	token  Token
	module *Module
	owned  bool
}

func (e *entity) Token() Token { return e.token }

func (e *entity) Module() *Module { return e.module }

func (e *entity) base() *entity { return e }

func (e *entity) children() []Member { return nil }

type registrable interface {
	Member
	base() *entity
	table() TableIndex
	// children lists the members owned by this one that must be
	// registered together with it.
	children() []Member
}

// adopt marks child as owned by owner and registers it in the owner's
// module when the owner is already registered.
func adopt(owner, child registrable) error {
	b := child.base()
	if b.owned {
		return errors.Wrapf(ErrAlreadyOwned, "%T %s", child, b.token)
	}
	if m := owner.base().module; m != nil {
		if err := m.registerChild(owner, child); err != nil {
			return err
		}
	}
	b.owned = true
	return nil
}

func attach[T registrable](owner registrable, list *lazy[[]T], child T) error {
	if err := adopt(owner, child); err != nil {
		return err
	}
	list.set(append(list.get(), child))
	return nil
}

func attachOne[T registrable](owner registrable, slot *lazy[T], child T) error {
	if err := adopt(owner, child); err != nil {
		return err
	}
	slot.set(child)
	return nil
}

func asMembers[T Member](items []T) []Member {
	out := make([]Member, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out
}
