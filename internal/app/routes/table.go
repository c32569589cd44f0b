package routes

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/oklog/ulid/v2"

	"remote-ui/go-backend/internal/domains/mutation"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/pkg/models"
)

type tableRow struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

type peopleForm struct {
	People map[string]tableRow `json:"people"`
}

func defaultPeople() peopleForm {
	return peopleForm{People: map[string]tableRow{
		"foo": {Name: "foo", Exists: false},
		"bar": {Name: "bar", Exists: true},
		"baz": {Name: "baz", Exists: false},
	}}
}

func newPeopleTable() *remoteui.Controller {
	return remoteui.Define(func(s *remoteui.Setup) remoteui.RenderFunc {
		form := remoteui.DefineForm(s, "form",
			remoteui.WithDefault(func(*remoteui.Session) peopleForm { return defaultPeople() }),
		)

		submit := form.Action("submit", func(ctx context.Context, event remoteui.FormEvent[peopleForm]) error {
			m, err := remoteui.FormEventMutation(event)
			if err != nil {
				return err
			}
			form.Update(remoteui.All, m)
			return nil
		})

		add := s.Action("add", func(ctx context.Context, event remoteui.ActionEvent) error {
			name := strings.ToLower(ulid.Make().String())
			row := tableRow{Name: name, Exists: rand.IntN(2) == 1}
			form.Update(remoteui.All, mutation.Assign([]string{"people"}, name, row))
			return nil
		})

		table := models.Table(form.Ref("people"), submit, tableColumns(tableRow{})...)
		return func(session *remoteui.Session) models.UIElement {
			return models.Frame(models.AxisColumn,
				table,
				models.Button("Add Person", add),
			).With("gap", 2)
		}
	})
}
