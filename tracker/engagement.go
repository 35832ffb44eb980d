package tracker

import (
	"fmt"
	"strconv"
)

func (t *Tracker) Scroll(v Visit, percentage int) error {
	value := float64(percentage)
	return t.TrackEvent(v, Event{
		Name:     "scroll",
		Category: "engagement",
		Action:   "scroll_depth",
		Label:    strconv.Itoa(percentage) + "%",
		Value:    &value,
	})
}

func (t *Tracker) TimeOnPage(v Visit, seconds int) error {
	value := float64(seconds)
	return t.TrackEvent(v, Event{
		Name:     "time_on_page",
		Category: "engagement",
		Action:   "duration",
		Label:    strconv.Itoa(seconds) + "s",
		Value:    &value,
	})
}

func (t *Tracker) Click(v Visit, elementType, elementText, elementID string) error {
	return t.TrackEvent(v, Event{
		Name:     "click",
		Category: "engagement",
		Action:   elementType,
		Label:    elementText,
		Params:   map[string]any{"element_id": elementID},
	})
}

// Search records a site search; the result count is the event value.
func (t *Tracker) Search(v Visit, term string, results int) error {
	value := float64(results)
	return t.TrackEvent(v, Event{
		Name:     "search",
		Category: "engagement",
		Action:   "site_search",
		Label:    term,
		Value:    &value,
	})
}

func (t *Tracker) Download(v Visit, fileName, fileType string) error {
	return t.TrackEvent(v, Event{
		Name:     "download",
		Category: "engagement",
		Action:   "file_download",
		Label:    fileName,
		Params:   map[string]any{"file_type": fileType},
	})
}

// Engagement is the wire form of an engagement beacon.
type Engagement struct {
	Kind        string `json:"kind" binding:"required,oneof=scroll time_on_page click search download"`
	Percentage  int    `json:"percentage"`
	Seconds     int    `json:"seconds"`
	ElementType string `json:"elementType"`
	ElementText string `json:"elementText"`
	ElementID   string `json:"elementId"`
	Term        string `json:"term"`
	Results     int    `json:"results"`
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
}

func (t *Tracker) TrackEngagement(v Visit, e Engagement) error {
	switch e.Kind {
	case "scroll":
		return t.Scroll(v, e.Percentage)
	case "time_on_page":
		return t.TimeOnPage(v, e.Seconds)
	case "click":
		return t.Click(v, e.ElementType, e.ElementText, e.ElementID)
	case "search":
		return t.Search(v, e.Term, e.Results)
	case "download":
		return t.Download(v, e.FileName, e.FileType)
	default:
		return fmt.Errorf("unknown engagement kind %q", e.Kind)
	}
}
