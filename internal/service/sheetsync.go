package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"auth-code-system/internal/model"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSyncService 把生成的卡密批次导出到Google Sheet，
// 供分发给代理商。未启用时所有方法空操作。
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetSyncService(enableSync bool, credentialPath, spreadsheetID, sheetName string) (*SheetSyncService, error) {
	if !enableSync {
		return nil, nil
	}

	ctx := context.Background()

	// 读取凭证文件
	b, err := os.ReadFile(credentialPath)
	if err != nil {
		return nil, err
	}

	// 使用服务账号授权
	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("无法加载凭证: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// codeRow 单张卡的导出行：卡密、批次、计费、面额、配额、状态、生成时间
func codeRow(code *model.AuthCode) []interface{} {
	var face string
	switch code.Billing {
	case model.BillingDuration:
		face = fmt.Sprintf("%s x%d", code.Duration.CardType, code.Duration.Duration)
	case model.BillingPoints:
		face = fmt.Sprintf("%d points", code.Points.TotalPoints)
	}
	return []interface{}{
		code.Code,
		code.BatchID,
		string(code.Billing),
		face,
		code.MaxDevices,
		code.AllowRebind,
		code.Status,
		code.CreatedAt.Format(time.RFC3339),
	}
}

// ExportBatch 把一个批次的卡密追加到工作表末尾
func (s *SheetSyncService) ExportBatch(codes []model.AuthCode) error {
	if s == nil {
		return nil
	}

	// 验证工作表是否存在
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Do()
	if err != nil {
		log.Printf("获取Spreadsheet信息失败: %+v", err)
		return fmt.Errorf("获取Spreadsheet信息失败: %v", err)
	}
	sheetExists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == s.sheetName {
			sheetExists = true
			break
		}
	}
	if !sheetExists {
		return fmt.Errorf("工作表'%s'不存在", s.sheetName)
	}

	var values [][]interface{}
	for i := range codes {
		values = append(values, codeRow(&codes[i]))
	}

	_, err = s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		s.sheetName+"!A2:H",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Do()
	if err != nil {
		log.Printf("导出批次到Google Sheet失败: %v", err)
		return fmt.Errorf("导出批次到Google Sheet失败: %v", err)
	}

	log.Printf("成功导出%d张卡密到Google Sheet", len(codes))
	return nil
}

// SyncCodeStatus 卡密状态变化时更新对应行，找不到行则追加
func (s *SheetSyncService) SyncCodeStatus(code *model.AuthCode) error {
	if s == nil {
		return nil
	}

	// 在A列里找这张卡
	keyResp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A2:A").Do()
	if err != nil {
		log.Printf("查询Sheet数据失败: %v", err)
		return fmt.Errorf("查询Sheet数据失败: %v", err)
	}

	rowIndex := 0
	for i, row := range keyResp.Values {
		if len(row) > 0 && row[0] == code.Code {
			rowIndex = i + 2 // A2起步，数组从0开始
			break
		}
	}

	values := [][]interface{}{codeRow(code)}
	if rowIndex > 0 {
		rangeData := fmt.Sprintf("%s!A%d:H%d", s.sheetName, rowIndex, rowIndex)
		_, err = s.service.Spreadsheets.Values.Update(
			s.spreadsheetID,
			rangeData,
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Append(
			s.spreadsheetID,
			s.sheetName+"!A2:H",
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	}
	if err != nil {
		log.Printf("同步到Google Sheet失败: %v", err)
		return fmt.Errorf("同步到Google Sheet失败: %v", err)
	}

	return nil
}
