package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
)

var checklistExportHeaders = []string{
	"N°", "Tipo", "Pregunta", "Obligatorio", "Respuesta", "Completado", "Fotos",
}

// ExportService 检查单报表导出
type ExportService struct {
	checklist *ChecklistService
}

func NewExportService(checklist *ChecklistService) *ExportService {
	return &ExportService{checklist: checklist}
}

// Export 导出检查单为xlsx，一题一行
func (s *ExportService) Export(ctx context.Context, instanceID string) (*excelize.File, string, error) {
	inst, err := s.checklist.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, "", err
	}
	codigo := inst.OrdenID
	if order, err := s.checklist.orders.Get(ctx, inst.OrdenID); err == nil && order.Codigo != "" {
		codigo = order.Codigo
	}

	f := excelize.NewFile()
	sheet := "Checklist"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range checklistExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	values := itemtype.DecodeAll(inst.Items, inst.Respuestas)
	for rowIdx, tpl := range inst.Items {
		row := rowIdx + 2
		resp := inst.Response(tpl.ID)
		fotos := 0
		if resp != nil {
			fotos = len(resp.Fotos)
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), tpl.OrdenVisual)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), tpl.TipoPregunta)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), tpl.PreguntaTexto)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), siNo(tpl.EsObligatorioEfectivo))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), itemtype.Describe(values[tpl.ID]))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), siNo(itemtype.ResponseComplete(tpl, resp)))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), fotos)
	}

	// 底部汇总行
	p := lifecycle.EvaluateResponses(inst.Items, inst.Respuestas)
	summaryRow := len(inst.Items) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Estado")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), inst.Estado)
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("Obligatorias: %d/%d", p.RequiredDone, p.Required))
	if inst.Firma.Complete() {
		f.SetCellValue(sheet, fmt.Sprintf("E%d", summaryRow), itemtype.Describe(itemtype.SignatureValue{
			Tecnico:   inst.Firma.FirmaTecnico,
			Cliente:   inst.Firma.FirmaCliente,
			Ubicacion: &inst.Firma.UbicacionCaptura,
		}))
	}
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("G%d", summaryRow), summaryStyle)

	colWidths := []float64{6, 22, 40, 12, 48, 12, 8}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("Checklist_%s.xlsx", codigo)
	return f, filename, nil
}

func siNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
