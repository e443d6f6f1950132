package core

type (
	// SceneObject is a drawable entity owned by exactly one Scene. The two
	// variants are TextObject and ImageObject; consumers switch
	// exhaustively on the concrete type.
	SceneObject interface {
		ObjectID() string
		isSceneObject()
	}

	// TextObject is an editable text block. FontWeight is an enum-like
	// string ("300".."900" or "bold"); Fill is a hex color string.
	TextObject struct {
		ID         string
		Text       string
		FontFamily string
		FontSize   float64
		FontWeight string
		Fill       string
		TextAlign  string // "left", "center" or "right"
		Left       float64
		Top        float64
		MaxWidth   float64
	}

	// ImageObject is a placed raster image. Width and Height are the
	// natural pixel dimensions learned from decoding Source; ScaleX and
	// ScaleY map them into canvas space.
	ImageObject struct {
		ID     string
		Source string // URL, file path or data URL
		Left   float64
		Top    float64
		ScaleX float64
		ScaleY float64
		Width  int
		Height int
	}
)

func (o *TextObject) ObjectID() string  { return o.ID }
func (o *ImageObject) ObjectID() string { return o.ID }

func (*TextObject) isSceneObject()  {}
func (*ImageObject) isSceneObject() {}
