package model

import "time"

// SeenProduct is one catalog item already shown to the customer, keyed
// in state by its product description id.
type SeenProduct struct {
	ProductDesID int64  `json:"product_des_id"`
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	SKU          string `json:"sku"`
	VarianceDes  string `json:"variance_des"`
	BriefDes     string `json:"brief_des"`
	Price        int64  `json:"price"`
	Inventory    int64  `json:"inventory"`
}

// CartLine is one cart entry, keyed in state by product description id.
type CartLine struct {
	ProductDesID int64 `json:"product_des_id"`
	Quantity     int64 `json:"quantity"`
	Price        int64 `json:"price"`
	Subtotal     int64 `json:"subtotal"`
}

// OrderItem is one line of a committed order, keyed by item id.
type OrderItem struct {
	ItemID       int64  `json:"item_id"`
	ProductDesID int64  `json:"product_des_id"`
	ProductID    int64  `json:"product_id"`
	SKU          string `json:"sku"`
	ProductName  string `json:"product_name"`
	VarianceDes  string `json:"variance_des"`
	Price        int64  `json:"price"`
	Quantity     int64  `json:"quantity"`
	Subtotal     int64  `json:"subtotal"`
}

// Order is one committed order, keyed in state by order id.
type Order struct {
	OrderID     int64     `json:"order_id"`
	Status      string    `json:"status"`
	Payment     string    `json:"payment"`
	OrderTotal  int64     `json:"order_total"`
	ShippingFee int64     `json:"shipping_fee"`
	GrandTotal  int64     `json:"grand_total"`
	CreatedAt   time.Time `json:"created_at"`

	ReceiverName    string `json:"receiver_name"`
	ReceiverPhone   string `json:"receiver_phone_number"`
	ReceiverAddress string `json:"receiver_address"`

	Items map[int64]OrderItem `json:"items"`
}

// Service is one bookable spa service.
type Service struct {
	ServiceID   int64  `json:"service_id"`
	Name        string `json:"name"`
	Duration    int64  `json:"duration_minutes"`
	Price       int64  `json:"price"`
	Description string `json:"description,omitempty"`
}

// Room is a bookable room with a seating capacity.
type Room struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity int64  `json:"capacity"`
}

// Staff is a staff member assignable to appointments.
type Staff struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AppointmentStatus values mirror the appointments table.
const (
	AppointmentBooked    = "booked"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Booking is one committed appointment, keyed in state by its id.
type Booking struct {
	BookingID   int64     `json:"booking_id"`
	ServiceID   int64     `json:"service_id"`
	ServiceName string    `json:"service_name"`
	RoomID      int64     `json:"room_id"`
	StaffID     int64     `json:"staff_id"`
	StaffName   string    `json:"staff_name"`
	BookingDate string    `json:"booking_date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
