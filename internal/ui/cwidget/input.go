package cwidget

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Input is a labelled entry that only reports values its Validator accepts.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
}

// NewUintInput accepts integers in [min, max]. An empty entry means the default.
func NewUintInput(label, placeholder string, defaultValue, min, max uint, onChanged func(uint)) *Input[uint] {
	input := &Input[uint]{
		LabelText:    label,
		Placeholder:  placeholder,
		OnChanged:    onChanged,
		DefaultValue: defaultValue,
	}
	input.Validator = RangeValidator(defaultValue, min, max)
	input.build()
	return input
}

// RangeValidator parses an unsigned integer and checks it against [min, max].
func RangeValidator(defaultValue, min, max uint) func(string) (uint, error) {
	return func(s string) (uint, error) {
		if s == "" {
			return defaultValue, nil
		}

		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return defaultValue, fmt.Errorf("%q is not a whole number", s)
		}
		if uint(n) < min || uint(n) > max {
			return defaultValue, fmt.Errorf("must be between %d and %d", min, max)
		}
		return uint(n), nil
	}
}

func (item *Input[T]) build() {
	item.labelWidget = widget.NewLabel(item.caption(item.DefaultValue))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Placeholder)

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = func(s string) {
		res, err := item.Validator(s)
		item.SetError(err)

		if err == nil {
			if item.OnChanged != nil {
				item.OnChanged(res)
			}
			item.labelWidget.SetText(item.caption(res))
		}
	}

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) caption(v T) string {
	return fmt.Sprintf("%s: %v", item.LabelText, v)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

// Caption is the current label text.
func (item *Input[T]) Caption() string {
	return item.labelWidget.Text
}

// ErrorText is empty while the entry holds a valid value.
func (item *Input[T]) ErrorText() string {
	if item.errorWidget.Hidden {
		return ""
	}
	return item.errorWidget.Text
}
