package importer

import (
	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/metadata"
)

// ImportTypeSignature rebuilds sig with every referenced type imported
// through imp. Signature nodes that reference nothing are shared.
func ImportTypeSignature(imp Importer, sig metadata.TypeSignature) (metadata.TypeSignature, error) {
	switch s := sig.(type) {
	case nil:
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "missing type signature")
	case *metadata.CorLibTypeSignature, *metadata.GenericParameterSignature:
		return s, nil
	case *metadata.TypeDefOrRefSignature:
		t, err := importSignatureType(imp, s.Type)
		if err != nil {
			return nil, err
		}
		return &metadata.TypeDefOrRefSignature{Type: t, IsValueType: s.IsValueType}, nil
	case *metadata.PointerTypeSignature:
		return importWrapped(imp, s.BaseType, func(b metadata.TypeSignature) metadata.TypeSignature { return metadata.NewPointer(b) })
	case *metadata.ByReferenceTypeSignature:
		return importWrapped(imp, s.BaseType, func(b metadata.TypeSignature) metadata.TypeSignature { return metadata.NewByReference(b) })
	case *metadata.SzArrayTypeSignature:
		return importWrapped(imp, s.BaseType, func(b metadata.TypeSignature) metadata.TypeSignature { return metadata.NewSzArray(b) })
	case *metadata.PinnedTypeSignature:
		return importWrapped(imp, s.BaseType, func(b metadata.TypeSignature) metadata.TypeSignature { return metadata.NewPinned(b) })
	case *metadata.BoxedTypeSignature:
		return importWrapped(imp, s.BaseType, func(b metadata.TypeSignature) metadata.TypeSignature { return metadata.NewBoxed(b) })
	case *metadata.ArrayTypeSignature:
		return importWrapped(imp, s.BaseType, func(b metadata.TypeSignature) metadata.TypeSignature {
			return metadata.NewArray(b, s.Dimensions...)
		})
	case *metadata.CustomModifierTypeSignature:
		modifier, err := importSignatureType(imp, s.ModifierType)
		if err != nil {
			return nil, err
		}
		return importWrapped(imp, s.BaseType, func(b metadata.TypeSignature) metadata.TypeSignature {
			return metadata.NewCustomModifier(modifier, s.IsRequired, b)
		})
	case *metadata.GenericInstanceTypeSignature:
		t, err := importSignatureType(imp, s.GenericType)
		if err != nil {
			return nil, err
		}
		args, err := ImportTypeSignatures(imp, s.TypeArguments)
		if err != nil {
			return nil, err
		}
		return metadata.NewGenericInstance(t, s.IsValueType, args...), nil
	case *metadata.FunctionPointerTypeSignature:
		ms, err := ImportMethodSignature(imp, s.Signature)
		if err != nil {
			return nil, err
		}
		return &metadata.FunctionPointerTypeSignature{Signature: ms}, nil
	}
	return nil, errors.Wrapf(metadata.ErrMalformedSignature, "unknown type signature %T", sig)
}

func importWrapped(imp Importer, base metadata.TypeSignature, wrap func(metadata.TypeSignature) metadata.TypeSignature) (metadata.TypeSignature, error) {
	b, err := ImportTypeSignature(imp, base)
	if err != nil {
		return nil, err
	}
	return wrap(b), nil
}

func importSignatureType(imp Importer, t metadata.TypeDefOrRef) (metadata.TypeDefOrRef, error) {
	if t == nil {
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "type signature without a type")
	}
	imported, err := imp.ImportType(t)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", t.FullName())
	}
	return imported, nil
}

// ImportTypeSignatures imports every signature of a list.
func ImportTypeSignatures(imp Importer, sigs []metadata.TypeSignature) ([]metadata.TypeSignature, error) {
	if sigs == nil {
		return nil, nil
	}
	out := make([]metadata.TypeSignature, len(sigs))
	for i, s := range sigs {
		imported, err := ImportTypeSignature(imp, s)
		if err != nil {
			return nil, err
		}
		out[i] = imported
	}
	return out, nil
}

func ImportMethodSignature(imp Importer, sig *metadata.MethodSignature) (*metadata.MethodSignature, error) {
	if sig == nil {
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "missing method signature")
	}
	ret, err := ImportTypeSignature(imp, sig.ReturnType)
	if err != nil {
		return nil, errors.Wrap(err, "return type")
	}
	params, err := ImportTypeSignatures(imp, sig.ParameterTypes)
	if err != nil {
		return nil, errors.Wrap(err, "parameter types")
	}
	sentinel, err := ImportTypeSignatures(imp, sig.SentinelParameterTypes)
	if err != nil {
		return nil, errors.Wrap(err, "vararg parameter types")
	}
	return &metadata.MethodSignature{
		Attributes:             sig.Attributes,
		GenericParameterCount:  sig.GenericParameterCount,
		ReturnType:             ret,
		ParameterTypes:         params,
		SentinelParameterTypes: sentinel,
	}, nil
}

func ImportFieldSignature(imp Importer, sig *metadata.FieldSignature) (*metadata.FieldSignature, error) {
	if sig == nil {
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "missing field signature")
	}
	t, err := ImportTypeSignature(imp, sig.FieldType)
	if err != nil {
		return nil, err
	}
	return metadata.NewFieldSignature(t), nil
}

func ImportPropertySignature(imp Importer, sig *metadata.PropertySignature) (*metadata.PropertySignature, error) {
	if sig == nil {
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "missing property signature")
	}
	t, err := ImportTypeSignature(imp, sig.PropertyType)
	if err != nil {
		return nil, err
	}
	params, err := ImportTypeSignatures(imp, sig.ParameterTypes)
	if err != nil {
		return nil, err
	}
	return &metadata.PropertySignature{HasThis: sig.HasThis, PropertyType: t, ParameterTypes: params}, nil
}

func ImportLocalVariables(imp Importer, sig *metadata.LocalVariablesSignature) (*metadata.LocalVariablesSignature, error) {
	if sig == nil {
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "missing local variables signature")
	}
	types, err := ImportTypeSignatures(imp, sig.VariableTypes)
	if err != nil {
		return nil, err
	}
	return &metadata.LocalVariablesSignature{VariableTypes: types}, nil
}

// ImportStandAloneSignature imports a standalone signature row. The
// imported row is registered in the target module.
func ImportStandAloneSignature(imp Importer, sig *metadata.StandAloneSignature) (*metadata.StandAloneSignature, error) {
	if sig == nil {
		return nil, nil
	}
	m, err := imp.ImportMember(sig)
	if err != nil {
		return nil, err
	}
	out, ok := m.(*metadata.StandAloneSignature)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedImport, "standalone signature imported as %T", m)
	}
	return out, nil
}

// ImportModuleReference returns the module reference of the target with
// the name of ref, creating it when needed.
func ImportModuleReference(imp Importer, ref *metadata.ModuleReference) (*metadata.ModuleReference, error) {
	if ref == nil {
		return nil, nil
	}
	m, err := imp.ImportMember(ref)
	if err != nil {
		return nil, err
	}
	out, ok := m.(*metadata.ModuleReference)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedImport, "module reference imported as %T", m)
	}
	return out, nil
}

// ImportCustomAttributeSignature copies sig with argument types and
// System.Type values imported through imp.
func ImportCustomAttributeSignature(imp Importer, sig *metadata.CustomAttributeSignature) (*metadata.CustomAttributeSignature, error) {
	if sig == nil {
		return nil, nil
	}
	out := &metadata.CustomAttributeSignature{
		FixedArguments: make([]*metadata.CustomAttributeArgument, len(sig.FixedArguments)),
		NamedArguments: make([]*metadata.CustomAttributeNamedArgument, len(sig.NamedArguments)),
	}
	for i, arg := range sig.FixedArguments {
		a, err := importArgument(imp, arg)
		if err != nil {
			return nil, errors.Wrapf(err, "fixed argument %d", i)
		}
		out.FixedArguments[i] = a
	}
	for i, named := range sig.NamedArguments {
		t, err := ImportTypeSignature(imp, named.ArgumentType)
		if err != nil {
			return nil, errors.Wrapf(err, "named argument %s", named.MemberName)
		}
		a, err := importArgument(imp, named.Argument)
		if err != nil {
			return nil, errors.Wrapf(err, "named argument %s", named.MemberName)
		}
		out.NamedArguments[i] = &metadata.CustomAttributeNamedArgument{
			Kind:         named.Kind,
			MemberName:   named.MemberName,
			ArgumentType: t,
			Argument:     a,
		}
	}
	return out, nil
}

func importArgument(imp Importer, arg *metadata.CustomAttributeArgument) (*metadata.CustomAttributeArgument, error) {
	if arg == nil {
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "missing argument")
	}
	t, err := ImportTypeSignature(imp, arg.ArgumentType)
	if err != nil {
		return nil, err
	}
	out := &metadata.CustomAttributeArgument{ArgumentType: t, IsNullArray: arg.IsNullArray}
	if arg.Elements != nil {
		out.Elements = make([]any, len(arg.Elements))
	}
	for i, e := range arg.Elements {
		v, err := importElement(imp, e)
		if err != nil {
			return nil, err
		}
		out.Elements[i] = v
	}
	return out, nil
}

func importElement(imp Importer, v any) (any, error) {
	switch x := v.(type) {
	case metadata.TypeSignature:
		return ImportTypeSignature(imp, x)
	case metadata.BoxedArgument:
		t, err := ImportTypeSignature(imp, x.Type)
		if err != nil {
			return nil, err
		}
		value, err := importElement(imp, x.Value)
		if err != nil {
			return nil, err
		}
		return metadata.BoxedArgument{Type: t, Value: value}, nil
	case *string:
		if x == nil {
			return x, nil
		}
		s := *x
		return &s, nil
	}
	return v, nil
}
