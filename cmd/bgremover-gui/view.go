package main

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"

	bgremover "github.com/menta2k/background-remover"
	"github.com/menta2k/background-remover/internal/app"
	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/render"
	"github.com/menta2k/background-remover/pkg/types"
)

const (
	formatPNG  = "PNG (transparent)"
	formatJPEG = "JPEG"

	modeChecker = "Checkerboard"
	modeSolid   = "Solid color"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".gif", ".webp"}

// view is the main window. It implements app.Listener; fyne runs every
// callback and every posted completion on its own goroutine.
type view struct {
	window fyne.Window
	ctrl   *app.Controller

	original *canvas.Image
	result   *canvas.Image
	compare  *canvas.Image

	processBtn *widget.Button
	batchBtn   *widget.Button
	saveBtn    *widget.Button

	formatRadio  *widget.RadioGroup
	qualitySlide *widget.Slider
	qualityLabel *widget.Label
	outDirLabel  *widget.Label
	modeSelect   *widget.Select
	zoomLabel    *widget.Label
	status       *widget.Label
	progress     *widget.ProgressBar

	srcSize image.Point
}

var _ app.Listener = (*view)(nil)

func newView(w fyne.Window) *view {
	v := &view{window: w}

	v.original = newPreview()
	v.result = newPreview()
	v.compare = newPreview()

	v.status = widget.NewLabel("Ready")
	v.progress = widget.NewProgressBar()
	v.progress.Max = 100
	v.zoomLabel = widget.NewLabel("100%")
	return v
}

func newPreview() *canvas.Image {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillOriginal
	return img
}

// bind wires the widgets to ctrl and builds the window content
func (v *view) bind(ctrl *app.Controller) {
	v.ctrl = ctrl
	prefs := ctrl.Preferences()

	v.processBtn = widget.NewButtonWithIcon("Remove Background", theme.MediaPlayIcon(), v.process)
	v.processBtn.Importance = widget.HighImportance
	v.saveBtn = widget.NewButtonWithIcon("Save Image", theme.DocumentSaveIcon(), v.export)
	v.batchBtn = widget.NewButtonWithIcon("Batch Process", theme.FolderIcon(), v.batch)

	v.formatRadio = widget.NewRadioGroup([]string{formatPNG, formatJPEG}, nil)
	if prefs.Format == types.FormatJPEG {
		v.formatRadio.SetSelected(formatJPEG)
	} else {
		v.formatRadio.SetSelected(formatPNG)
	}
	v.formatRadio.OnChanged = func(s string) {
		f := types.FormatPNG
		if s == formatJPEG {
			f = types.FormatJPEG
		}
		v.report(v.ctrl.SetFormat(f))
	}

	v.qualityLabel = widget.NewLabel(fmt.Sprintf("%d%%", prefs.Quality))
	v.qualitySlide = widget.NewSlider(1, 100)
	v.qualitySlide.Step = 1
	v.qualitySlide.SetValue(float64(prefs.Quality))
	v.qualitySlide.OnChanged = func(f float64) {
		v.qualityLabel.SetText(fmt.Sprintf("%d%%", int(f)))
	}
	v.qualitySlide.OnChangeEnded = func(f float64) {
		v.report(v.ctrl.SetQuality(int(f)))
	}

	v.outDirLabel = widget.NewLabel(prefs.OutputDirectory)
	v.outDirLabel.Truncation = fyne.TextTruncateEllipsis

	v.modeSelect = widget.NewSelect([]string{modeChecker, modeSolid}, nil)
	v.modeSelect.SetSelected(modeChecker)
	v.modeSelect.OnChanged = func(s string) {
		if s == modeSolid {
			v.ctrl.SetBackgroundMode(render.Solid)
		} else {
			v.ctrl.SetBackgroundMode(render.Transparent)
		}
	}

	settings := widget.NewCard("Settings", "", container.NewVBox(
		widget.NewLabel("Format:"),
		v.formatRadio,
		widget.NewLabel("Quality:"),
		container.NewBorder(nil, nil, nil, v.qualityLabel, v.qualitySlide),
		widget.NewLabel("Save Location:"),
		v.outDirLabel,
		widget.NewButtonWithIcon("Select Location", theme.FolderOpenIcon(), v.selectOutputDir),
		widget.NewLabel("Preview background:"),
		v.modeSelect,
		widget.NewButtonWithIcon("Background Color", theme.ColorPaletteIcon(), v.pickColor),
	))
	actions := widget.NewCard("Actions", "", container.NewVBox(
		widget.NewButtonWithIcon("Select Image", theme.FolderOpenIcon(), v.open),
		v.processBtn,
		v.saveBtn,
		widget.NewButton("Save As...", v.exportAs),
		v.batchBtn,
	))

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), v.open),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), v.export),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentCutIcon(), v.crop),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), v.rotate),
		widget.NewToolbarAction(theme.MoveDownIcon(), func() { v.report(v.ctrl.FlipVertical()) }),
		widget.NewToolbarAction(theme.MoveUpIcon(), func() { v.report(v.ctrl.FlipHorizontal()) }),
		widget.NewToolbarAction(theme.ContentUndoIcon(), v.undo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomInIcon(), v.ctrl.ZoomIn),
		widget.NewToolbarAction(theme.ZoomOutIcon(), v.ctrl.ZoomOut),
		widget.NewToolbarAction(theme.ZoomFitIcon(), v.ctrl.ResetZoom),
		widget.NewToolbarSpacer(),
		widget.NewToolbarAction(theme.HelpIcon(), v.help),
	)

	images := container.NewHSplit(
		widget.NewCard("Original Image", "", container.NewScroll(v.original)),
		widget.NewCard("Processed Image", "", container.NewScroll(v.result)),
	)
	images.SetOffset(0.5)
	tabs := container.NewAppTabs(
		container.NewTabItem("Preview", images),
		container.NewTabItem("Compare", container.NewScroll(v.compare)),
	)

	side := container.NewVScroll(container.NewVBox(actions, settings))
	statusBar := container.NewBorder(nil, nil, nil,
		container.NewHBox(v.zoomLabel, widget.NewLabel("v"+bgremover.Version)),
		container.NewVBox(v.progress, v.status))

	v.window.SetContent(container.NewBorder(toolbar, statusBar, side, nil, tabs))
	v.addShortcuts()
	v.StateChanged(ctrl.State())
}

func (v *view) addShortcuts() {
	add := func(key fyne.KeyName, fn func()) {
		v.window.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierShortcutDefault},
			func(fyne.Shortcut) { fn() })
	}
	add(fyne.KeyO, v.open)
	add(fyne.KeyS, v.export)
	add(fyne.KeyP, v.process)
	add(fyne.KeyZ, v.undo)
}

func (v *view) open() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		if r == nil {
			return
		}
		path := r.URI().Path()
		r.Close()
		// errors reach the Error callback
		_ = v.ctrl.Open(path)
	}, v.window)
	d.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	d.Show()
}

func (v *view) process() {
	v.report(v.ctrl.Process())
}

func (v *view) export() {
	_, err := v.ctrl.Export()
	if errors.Is(err, types.ErrNoResult) {
		v.status.SetText("No processed image to save")
	}
}

func (v *view) exportAs() {
	if !v.ctrl.HasResult() {
		v.status.SetText("No processed image to save")
		return
	}
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		if w == nil {
			return
		}
		path := w.URI().Path()
		w.Close()
		if filepath.Ext(path) == "" {
			path += ".png"
		}
		_ = v.ctrl.ExportAs(path)
	}, v.window)
	d.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	d.SetFileName("image" + processing.OutputSuffix + ".png")
	d.Show()
}

func (v *view) batch() {
	dialog.ShowFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		if dir == nil {
			return
		}
		files, err := utils.ListImageFiles(dir.Path(), processing.OutputSuffix)
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		if len(files) == 0 {
			dialog.ShowInformation("Batch Process", "No images found in "+dir.Path(), v.window)
			return
		}
		v.report(v.ctrl.Batch(files))
	}, v.window)
}

func (v *view) selectOutputDir() {
	dialog.ShowFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		if dir == nil {
			return
		}
		if err := v.ctrl.SetOutputDirectory(dir.Path()); err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		v.outDirLabel.SetText(v.ctrl.Preferences().OutputDirectory)
	}, v.window)
}

func (v *view) pickColor() {
	d := dialog.NewColorPicker("Background Color", "Color used for the solid preview and JPEG exports", func(c color.Color) {
		v.ctrl.SetBackgroundColor(types.RGBFromColor(c))
		v.modeSelect.SetSelected(modeSolid)
	}, v.window)
	d.Advanced = true
	d.SetColor(v.ctrl.Preferences().BgColor.NRGBA())
	d.Show()
}

func (v *view) crop() {
	if !v.ctrl.HasSource() {
		v.status.SetText("Load an image first")
		return
	}
	x, y := widget.NewEntry(), widget.NewEntry()
	w, h := widget.NewEntry(), widget.NewEntry()
	x.SetText("0")
	y.SetText("0")
	w.SetText(strconv.Itoa(v.srcSize.X))
	h.SetText(strconv.Itoa(v.srcSize.Y))

	items := []*widget.FormItem{
		widget.NewFormItem("Left", x),
		widget.NewFormItem("Top", y),
		widget.NewFormItem("Width", w),
		widget.NewFormItem("Height", h),
	}
	dialog.ShowForm("Crop Image", "Crop", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		vals, err := atois(x.Text, y.Text, w.Text, h.Text)
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		_ = v.ctrl.Crop(image.Rect(vals[0], vals[1], vals[0]+vals[2], vals[1]+vals[3]))
	}, v.window)
}

func (v *view) rotate() {
	angle := widget.NewEntry()
	angle.SetText("90")
	dialog.ShowForm("Rotate Image", "Apply", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Rotation Angle", angle),
	}, func(ok bool) {
		if !ok {
			return
		}
		deg, err := strconv.ParseFloat(angle.Text, 64)
		if err != nil {
			dialog.ShowError(errors.Errorf("invalid angle %q", angle.Text), v.window)
			return
		}
		_ = v.ctrl.Rotate(deg)
	}, v.window)
}

func (v *view) undo() {
	// "Nothing to undo" is reported through Status
	_ = v.ctrl.Undo()
}

func (v *view) help() {
	dialog.ShowInformation("Help",
		"1. Select an image (Ctrl+O)\n"+
			"2. Remove the background (Ctrl+P)\n"+
			"3. Save the result (Ctrl+S)\n\n"+
			"Crop, rotate and flip before processing; Ctrl+Z undoes the last edit.\n"+
			"Batch Process writes <name>_nobg.png for every image in a folder.",
		v.window)
}

// report shows errors the controller returns without notifying the listener
func (v *view) report(err error) {
	if err != nil {
		v.status.SetText(err.Error())
	}
}

func (v *view) refresh() {
	if v.ctrl == nil {
		return
	}
	setImage(v.original, v.ctrl.SourcePreview())
	setImage(v.result, v.ctrl.ResultPreview())
	setImage(v.compare, v.ctrl.ComparePreview())
	v.zoomLabel.SetText(fmt.Sprintf("%.0f%%", v.ctrl.Zoom()*100))
}

func setImage(c *canvas.Image, img image.Image) {
	c.Image = img
	if img != nil {
		b := img.Bounds()
		c.SetMinSize(fyne.NewSize(float32(b.Dx()), float32(b.Dy())))
	} else {
		c.SetMinSize(fyne.NewSize(0, 0))
	}
	c.Refresh()
}

func (v *view) StateChanged(s app.State) {
	if v.processBtn == nil {
		return
	}
	if s == app.Processing {
		v.processBtn.Disable()
		v.batchBtn.Disable()
		return
	}
	v.processBtn.Enable()
	v.batchBtn.Enable()
}

func (v *view) SourceChanged(img image.Image) {
	if img != nil {
		v.srcSize = img.Bounds().Size()
	} else {
		v.srcSize = image.Point{}
	}
	v.refresh()
}

func (v *view) ResultChanged(image.Image) { v.refresh() }
func (v *view) ViewChanged()              { v.refresh() }
func (v *view) Progress(p float64)        { v.progress.SetValue(p) }
func (v *view) Status(text string)        { v.status.SetText(text) }

func (v *view) Error(err error) {
	dialog.ShowError(err, v.window)
}

func atois(values ...string) ([]int, error) {
	out := make([]int, len(values))
	for i, s := range values {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Errorf("invalid number %q", s)
		}
		out[i] = n
	}
	return out, nil
}
