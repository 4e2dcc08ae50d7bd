package itemtype

import (
	"fmt"
	"strings"
	"time"
)

// Describe renders a value as one line of text for reports and the CLI.
// Unanswered values render as "".
func Describe(v Value) string {
	switch x := v.(type) {
	case TextValue:
		return strings.TrimSpace(x.Text)
	case NumberValue:
		return strings.TrimSpace(x.Raw)
	case BooleanValue:
		if x.V == nil {
			return ""
		}
		if *x.V {
			return "Sí"
		}
		return "No"
	case SelectValue:
		return x.Option
	case MultiValue:
		return strings.Join(x.Options, ", ")
	case InventoryValue:
		return x.Summary()
	case PhotoValue:
		if len(x.Photos) == 0 {
			return ""
		}
		return fmt.Sprintf("%d foto(s)", len(x.Photos))
	case SignatureValue:
		switch {
		case x.Tecnico != "" && x.Cliente != "":
			if x.Ubicacion == nil || x.Ubicacion.IsSentinel() {
				return "Firmado (sin GPS)"
			}
			return fmt.Sprintf("Firmado (%.6f, %.6f)", x.Ubicacion.Lat, x.Ubicacion.Lng)
		case x.Tecnico != "" || x.Cliente != "":
			return "Firma incompleta"
		}
		return ""
	case DateTimeValue:
		if x.At == nil {
			return ""
		}
		return x.At.Format(time.RFC3339)
	case LocationValue:
		if x.Coord == nil {
			return ""
		}
		return fmt.Sprintf("%.6f, %.6f", x.Coord.Lat, x.Coord.Lng)
	case FuelValue:
		if lvl, ok := FuelLevelByKey(x.Level); ok {
			return lvl.Label
		}
		return x.Level
	case UnknownValue:
		return ""
	}
	return ""
}
