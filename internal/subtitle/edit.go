package subtitle

// ApplyEdits returns a copy of captions with each edit applied to the first
// caption whose index matches. Edits for unknown indexes are ignored.
func ApplyEdits(captions []Caption, edits []Edit) []Caption {
	ret := Clone(captions)
	for _, edit := range edits {
		for i := range ret {
			if ret[i].Index != edit.Index {
				continue
			}
			ret[i].Start = edit.Start
			ret[i].End = edit.End
			ret[i].Text = edit.Text
			break
		}
	}
	return ret
}
