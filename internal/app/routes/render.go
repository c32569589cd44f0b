package routes

import (
	"reflect"
	"strings"
	"unicode"

	"remote-ui/go-backend/pkg/models"
)

// renderStruct lays out one labelled editor per field of value, bound under
// model. Nested structs get their own bordered group when nested is set.
func renderStruct(value any, model, onChange string, nested bool) models.UIElement {
	return models.Frame(models.AxisColumn, structFields(reflect.TypeOf(value), model, onChange, nested)...)
}

func structFields(typ reflect.Type, model, onChange string, nested bool) []models.UIElement {
	fields := make([]models.UIElement, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		prop, ok := jsonName(typ.Field(i))
		if !ok {
			continue
		}
		ref := model + "." + prop
		switch typ.Field(i).Type.Kind() {
		case reflect.String:
			fields = append(fields, labelled(prop, models.Editable(ref, onChange, ref).With("fill", true)))
		case reflect.Bool:
			fields = append(fields, labelled(prop, models.Checkbox(ref, onChange, ref)))
		case reflect.Struct:
			if !nested {
				continue
			}
			children := append([]models.UIElement{
				models.Label("• "+titleCase(prop)).With("margin", "a0b2"),
			}, structFields(typ.Field(i).Type, ref, onChange, nested)...)
			fields = append(fields, models.Frame(models.AxisColumn, children...).
				With("border", true).
				With("rounded", true).
				With("padding", "x2b2").
				With("margin", "y2"))
		}
	}
	return fields
}

func tableColumns(value any) []models.TableColumn {
	typ := reflect.TypeOf(value)
	columns := make([]models.TableColumn, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		prop, ok := jsonName(typ.Field(i))
		if !ok {
			continue
		}
		kind := "text"
		if typ.Field(i).Type.Kind() == reflect.Bool {
			kind = "checkbox"
		}
		columns = append(columns, models.TableColumn{Prop: prop, Label: titleCase(prop), Kind: kind})
	}
	return columns
}

func labelled(prop string, field models.UIElement) models.UIElement {
	return models.Frame(models.AxisRow,
		models.Label(titleCase(prop)).With("basis", 100),
		field,
	).With("center", "cross")
}

func jsonName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return field.Name, true
	}
	return name, true
}

// titleCase turns "homeAddress" into "Home Address".
func titleCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
