package spanslide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ronlev/spanslide/pkg/spanslide/track"
)

func TestSerialFeed_handleLine(t *testing.T) {
	type testCase struct {
		expectedEvents []DragEvent
		givenLine      string
		isInverting    bool
	}

	testCases := map[string]testCase{
		"lower-thumb-drag": {
			expectedEvents: []DragEvent{
				{WidgetID: 0, Sample: track.DragSample{Offset: -20, Width: 200, Upper: false}},
			},
			givenLine:   "0|0|-20|200\r\n",
			isInverting: false,
		},
		"upper-thumb-drag": {
			expectedEvents: []DragEvent{
				{WidgetID: 2, Sample: track.DragSample{Offset: 35, Width: 640, Upper: true}},
			},
			givenLine:   "2|1|35|640\r\n",
			isInverting: false,
		},
		"inverted-direction": {
			expectedEvents: []DragEvent{
				{WidgetID: 0, Sample: track.DragSample{Offset: -35, Width: 200, Upper: false}},
			},
			givenLine:   "0|0|35|200\r\n",
			isInverting: true,
		},
		"zero-width": {
			expectedEvents: []DragEvent{},
			givenLine:      "0|1|5|0\r\n",
			isInverting:    false,
		},
		"negative-width": {
			expectedEvents: []DragEvent{},
			givenLine:      "0|1|5|-200\r\n",
			isInverting:    false,
		},
		"thumb-field-out-of-range": {
			expectedEvents: []DragEvent{},
			givenLine:      "0|2|5|200\r\n",
			isInverting:    false,
		},
		"too-many-fields": {
			expectedEvents: []DragEvent{},
			givenLine:      "0|1|2|3|4\r\n",
			isInverting:    false,
		},
		"missing-line-ending": {
			expectedEvents: []DragEvent{},
			givenLine:      "0|1|-20|200",
			isInverting:    false,
		},
		"gibrish-values": {
			expectedEvents: []DragEvent{},
			givenLine:      "UwU",
			isInverting:    false,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {

			sf := SerialFeed{
				logger: zap.S(),
				spanslide: &Spanslide{
					config: &CanonicalConfig{
						InvertDirection: testCase.isInverting,
					},
				},
				dragConsumers: []chan DragEvent{
					make(chan DragEvent, len(testCase.expectedEvents)),
				},
			}
			sf.handleLine(zap.S(), testCase.givenLine)

			for _, expectedEvent := range testCase.expectedEvents {
				dragEvent := <-sf.dragConsumers[0]

				assert.Equal(t, expectedEvent, dragEvent)
			}
		})
	}
}
