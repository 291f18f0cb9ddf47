package vehicle

// Prompt 发送给视觉模型的固定指令，规定了成功与失败两种回复格式
const Prompt = `Accurately identify the vehicle model, manufacturer, color, and year with your analysis. Please respond in the following JSON format:

{
  "vehicle": {
    "manufacturer": "string",
    "model": "string",
    "color": "string",
    "year": "string",
    "logo": { "image": "image_data" },
    "fuel_type": "string",
    "fuel_efficiency_kmpl": "number",
    "max_speed_kmph": "number",
    "manufacturer_country": "string",
    "years_of_production": "string",
    "horsepower": "number"
  }
}

The "logo" field should contain an actual image of the manufacturer's logo, not a URL.

If the image does not contain a vehicle, respond in this format:
{
  "error": "The image does not contain a vehicle."
}

Example responses:

For a successful identification:
{
  "vehicle": {
    "manufacturer": "Toyota",
    "model": "Camry",
    "color": "White",
    "year": "2020",
    "logo": { "image": "actual_logo_image_data" },
    "fuel_type": "Petrol",
    "fuel_efficiency_kmpl": 14,
    "max_speed_kmph": 210,
    "manufacturer_country": "Japan",
    "years_of_production": "2018-2023",
    "horsepower": 203
  }
}

If the vehicle's year cannot be exactly determined, provide the range in the format "YYYY-YYYY" (e.g., "2002-2006"). Example:
{
  "vehicle": {
    "manufacturer": "Honda",
    "model": "Civic",
    "color": "Black",
    "year": "2002-2006",
    "logo": { "image": "actual_logo_image_data" },
    "fuel_type": "Petrol",
    "fuel_efficiency_kmpl": 16,
    "max_speed_kmph": 220,
    "manufacturer_country": "Japan",
    "years_of_production": "2001-2006",
    "horsepower": 158
  }
}`

// NoVehicleMessage 模型判断图片中没有车辆时返回的错误信息
const NoVehicleMessage = "The image does not contain a vehicle."
