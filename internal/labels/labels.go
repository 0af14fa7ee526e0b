// Package labels holds the ordered set of categories the leaf classifier
// was trained on. Position i in the list is output position i of the model.
package labels

// ClassLabel names one species/health category.
type ClassLabel string

var ordered = []ClassLabel{
	"Pepper__bell___Bacterial_spot",
	"Pepper__bell___healthy",
	"Potato___Early_blight",
	"Potato___Late_blight",
	"Potato___healthy",
	"Tomato_Bacterial_spot",
	"Tomato_Early_blight",
	"Tomato_Late_blight",
	"Tomato_Leaf_Mold",
	"Tomato_Septoria_leaf_spot",
	"Tomato_Spider_mites_Two_spotted_spider_mite",
	"Tomato__Target_Spot",
	"Tomato__Tomato_YellowLeaf__Curl_Virus",
	"Tomato__Tomato_mosaic_virus",
	"Tomato_healthy",
}

// All returns a copy of the labels in model output order.
func All() []ClassLabel {
	out := make([]ClassLabel, len(ordered))
	copy(out, ordered)
	return out
}

// Count is the length of the model's output vector.
func Count() int {
	return len(ordered)
}

// At returns the label for output position i.
func At(i int) (ClassLabel, bool) {
	if i < 0 || i >= len(ordered) {
		return "", false
	}
	return ordered[i], true
}

// Index returns the output position of label, or -1.
func Index(label ClassLabel) int {
	for i, l := range ordered {
		if l == label {
			return i
		}
	}
	return -1
}
