package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Labels shared with the ui package, which reads the form back by label.
const (
	LabelProjectName = "Project Name"
	LabelProjectType = "Project Type"
	LabelOtherType   = "Other Type"
	LabelBasePath    = "Base Path"
	OtherType        = "other..."
)

// NewProjectDialog shows the project creation form. The type dropdown lists
// types plus "other...", which enables the free-text Other Type field.
// onSubmit is called with the form itself; onCancel on Escape.
func NewProjectDialog(types []string, defaultBase string,
	onSubmit func(*tview.Form), onCancel func()) *tview.Form {

	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" New Project ").SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetFieldBackgroundColor(tcell.ColorDefault)

	options := append(append([]string{}, types...), OtherType)

	form.AddInputField(LabelProjectName, "", 30, nil, nil)
	form.AddDropDown(LabelProjectType, options, 0, nil)
	form.AddInputField(LabelOtherType, "", 30, nil, nil)
	form.AddInputField(LabelBasePath, defaultBase, 40, nil, nil)

	other := form.GetFormItemByLabel(LabelOtherType).(*tview.InputField)
	other.SetDisabled(len(types) > 0)
	form.GetFormItemByLabel(LabelProjectType).(*tview.DropDown).
		SetSelectedFunc(func(text string, _ int) {
			other.SetDisabled(text != OtherType)
		})

	form.AddButton("Create", func() { onSubmit(form) })
	form.AddButton("Cancel", onCancel)

	form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onCancel()
			return nil
		}
		return event
	})

	return form
}
