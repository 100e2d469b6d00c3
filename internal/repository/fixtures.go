package repository

import "github.com/anvie-labs/chat-orchestrator/internal/model"

// SeedDemo installs a small retail and spa catalog, used by the
// single-process deployment and local development.
func (m *Memory) SeedDemo() {
	m.SeedCatalog(
		[]model.SeenProduct{
			{ProductDesID: 1, ProductID: 101, ProductName: "Serum HA B5", SKU: "SRM-HA-01", VarianceDes: "30ml", BriefDes: "Cấp ẩm phục hồi da", Price: 320000, Inventory: 24},
			{ProductDesID: 2, ProductID: 102, ProductName: "Kem chống nắng SPF50", SKU: "KCN-50-01", VarianceDes: "50ml", BriefDes: "Chống nắng phổ rộng", Price: 280000, Inventory: 40},
			{ProductDesID: 3, ProductID: 103, ProductName: "Sữa rửa mặt dịu nhẹ", SKU: "SRM-DN-01", VarianceDes: "150ml", BriefDes: "Làm sạch không khô da", Price: 180000, Inventory: 35},
			{ProductDesID: 4, ProductID: 104, ProductName: "Mặt nạ dưỡng trắng", SKU: "MN-DT-01", VarianceDes: "Hộp 10 miếng", BriefDes: "Dưỡng trắng cấp tốc", Price: 250000, Inventory: 18},
		},
		[]model.Service{
			{ServiceID: 1, Name: "Massage thư giãn", Duration: 60, Price: 350000, Description: "Massage toàn thân tinh dầu"},
			{ServiceID: 2, Name: "Chăm sóc da cơ bản", Duration: 75, Price: 450000, Description: "Làm sạch sâu và dưỡng ẩm"},
			{ServiceID: 3, Name: "Trị liệu mụn", Duration: 90, Price: 550000, Description: "Lấy nhân mụn chuẩn y khoa"},
		},
		[]model.Room{
			{ID: 1, Name: "Phòng Sen", Capacity: 2},
			{ID: 2, Name: "Phòng Lan", Capacity: 1},
		},
		[]model.Staff{
			{ID: 1, Name: "Lan"},
			{ID: 2, Name: "Hương"},
			{ID: 3, Name: "Mai"},
		},
	)
}
