package cloner

import (
	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/importer"
	"github.com/grafana/clrmeta/pkg/metadata"
)

// cloneTypeAttributes clones the custom attributes of a type and of every
// member it declares.
func (op *operation) cloneTypeAttributes(original, clone *metadata.TypeDefinition) error {
	if err := op.cloneAttributes(original, clone); err != nil {
		return err
	}
	for i, impl := range original.Interfaces() {
		if err := op.cloneAttributes(impl, clone.Interfaces()[i]); err != nil {
			return errors.Wrapf(err, "interface %s", impl.Interface().FullName())
		}
	}
	for _, p := range original.GenericParameters() {
		if err := op.cloneGenericParameterAttributes(p); err != nil {
			return err
		}
	}
	for _, f := range original.Fields() {
		fc, err := clonedAs[*metadata.FieldDefinition](op, f)
		if err != nil {
			return err
		}
		if err := op.cloneAttributes(f, fc); err != nil {
			return errors.Wrapf(err, "field %s", f.Name())
		}
	}
	for _, m := range original.Methods() {
		mc, err := op.clonedMethod(m)
		if err != nil {
			return err
		}
		if err := op.cloneAttributes(m, mc); err != nil {
			return errors.Wrapf(err, "method %s", m.Name())
		}
		for _, p := range m.ParameterDefinitions() {
			pc, ok := mc.ParameterDefinition(p.Sequence())
			if !ok {
				return errors.Wrapf(ErrNotCloned, "parameter %d of %s", p.Sequence(), m.Name())
			}
			if err := op.cloneAttributes(p, pc); err != nil {
				return errors.Wrapf(err, "parameter %d of %s", p.Sequence(), m.Name())
			}
		}
		for _, p := range m.GenericParameters() {
			if err := op.cloneGenericParameterAttributes(p); err != nil {
				return err
			}
		}
	}
	for _, p := range original.Properties() {
		pc, err := clonedAs[*metadata.PropertyDefinition](op, p)
		if err != nil {
			return err
		}
		if err := op.cloneAttributes(p, pc); err != nil {
			return errors.Wrapf(err, "property %s", p.Name())
		}
	}
	for _, e := range original.Events() {
		ec, err := clonedAs[*metadata.EventDefinition](op, e)
		if err != nil {
			return err
		}
		if err := op.cloneAttributes(e, ec); err != nil {
			return errors.Wrapf(err, "event %s", e.Name())
		}
	}
	return nil
}

func (op *operation) cloneGenericParameterAttributes(p *metadata.GenericParameter) error {
	pc, err := clonedAs[*metadata.GenericParameter](op, p)
	if err != nil {
		return err
	}
	if err := op.cloneAttributes(p, pc); err != nil {
		return errors.Wrapf(err, "generic parameter %s", p.Name())
	}
	constraints := pc.Constraints()
	for i, c := range p.Constraints() {
		if err := op.cloneAttributes(c, constraints[i]); err != nil {
			return errors.Wrapf(err, "constraint of generic parameter %s", p.Name())
		}
	}
	return nil
}

func (op *operation) cloneAttributes(original, clone metadata.HasCustomAttributes) error {
	for _, ca := range original.CustomAttributes() {
		cloned, err := op.cloneCustomAttribute(ca)
		if err != nil {
			return err
		}
		if err := clone.AddCustomAttribute(cloned); err != nil {
			return err
		}
		op.counts[kindCustomAttribute]++
	}
	return nil
}

// cloneCustomAttribute imports the constructor and copies the arguments,
// importing the types they mention.
func (op *operation) cloneCustomAttribute(ca *metadata.CustomAttribute) (*metadata.CustomAttribute, error) {
	if ca.Constructor() == nil {
		return nil, errors.Wrap(metadata.ErrMalformedSignature, "custom attribute without a constructor")
	}
	ctor, err := op.imp.ImportMethod(ca.Constructor())
	if err != nil {
		return nil, errors.Wrapf(err, "import constructor %s", ca.Constructor().Name())
	}
	attrType, ok := ctor.(metadata.CustomAttributeType)
	if !ok {
		return nil, errors.Wrapf(importer.ErrUnexpectedImport, "constructor imported as %T", ctor)
	}
	sig, err := importer.ImportCustomAttributeSignature(op.imp, ca.Signature())
	if err != nil {
		return nil, errors.Wrapf(err, "arguments of %s", ca.Constructor().Name())
	}
	return metadata.NewCustomAttribute(attrType, sig), nil
}
