package vehicle

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Vehicle 模型识别出的车辆信息，字段全部由模型生成，只用于日志，不做校验
type Vehicle struct {
	Manufacturer        string          `json:"manufacturer"`
	Model               string          `json:"model"`
	Color               string          `json:"color"`
	Year                string          `json:"year"`
	Logo                json.RawMessage `json:"logo,omitempty"` // 模型很少能给出真正的图片数据
	FuelType            string          `json:"fuel_type"`
	FuelEfficiencyKmpl  Number          `json:"fuel_efficiency_kmpl"`
	MaxSpeedKmph        Number          `json:"max_speed_kmph"`
	ManufacturerCountry string          `json:"manufacturer_country"`
	YearsOfProduction   string          `json:"years_of_production"`
	Horsepower          Number          `json:"horsepower"`
}

// Summary 用于日志的简短描述
func (v Vehicle) Summary() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{v.Year, v.Color, v.Manufacturer, v.Model} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Number 兼容模型把数字写成 14、"14" 或 "14 km/l" 的情况，无法解析时为0
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		fields := strings.Fields(s)
		if len(fields) == 0 {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}
