package mockserver

type dataset struct {
	activities    *collection
	registrations *collection
	notifications *collection
	ads           *collection
	models        *collection
	conversations *collection
	messages      *collection
	memories      *collection
	threats       *collection
	plans         *collection
	planClasses   *collection
	trackings     *collection
	quotas        *collection
}

func seed() *dataset {
	return &dataset{
		activities: newCollection(
			record{"title": "秋季开放日", "category": "open_day", "status": "published", "startTime": "2026-10-25", "endTime": "2026-10-25", "capacity": 60, "registeredCount": 42, "location": "一楼大厅"},
			record{"title": "家长会", "category": "parent_meeting", "status": "ongoing", "startTime": "2026-10-18T09:00:00+08:00", "endTime": "2026-10-18T11:00:00+08:00", "capacity": 120, "registeredCount": 97},
			record{"title": "亲子运动会", "category": "sports", "status": "draft", "startTime": "2026-11-08", "endTime": "2026-11-08", "capacity": 80, "needsApproval": true},
		),
		registrations: newCollection(
			record{"activityId": 1, "parentName": "王芳", "childName": "王小明", "phone": "13800000001", "status": "pending", "registeredAt": "2026-10-10T10:00:00+08:00"},
			record{"activityId": 1, "parentName": "李娜", "childName": "李可", "phone": "13800000002", "status": "approved", "registeredAt": "2026-10-11T15:30:00+08:00"},
			record{"activityId": 3, "parentName": "张伟", "childName": "张一", "status": "pending"},
		),
		notifications: newCollection(
			record{"title": "新的活动报名", "content": "秋季开放日新增 3 个报名", "type": "registration", "read": false, "createdAt": "2026-10-16T08:00:00+08:00"},
			record{"title": "活动即将开始", "content": "家长会将于明天开始", "type": "reminder", "read": true},
		),
		ads: newCollection(
			record{"title": "秋季招生", "type": "banner", "status": "active", "position": "home_top", "sortOrder": 1, "impressions": 1200, "clicks": 96, "startDate": "2026-09-01", "endDate": "2026-12-31"},
			record{"title": "开放日预约", "type": "popup", "status": "active", "position": "home", "sortOrder": 3, "impressions": 800, "clicks": 40},
			record{"title": "寒假托管", "type": "notice", "status": "draft", "sortOrder": 2},
		),
		models: newCollection(
			record{"name": "doubao-pro", "displayName": "豆包 Pro", "provider": "volcengine", "modelType": "text", "capabilities": []string{"chat", "summary"}, "maxTokens": 32000, "isDefault": true, "isActive": true},
			record{"name": "doubao-vision", "displayName": "豆包视觉", "provider": "volcengine", "modelType": "multimodal", "capabilities": []string{"chat", "vision"}, "maxTokens": 8000, "isDefault": false, "isActive": true},
		),
		conversations: newCollection(
			record{"title": "招生咨询话术", "userId": 1, "modelId": 1, "messageCount": 2, "createdAt": "2026-10-15T09:00:00+08:00"},
		),
		messages: newCollection(
			record{"conversationId": 1, "role": "user", "content": "如何介绍我们的特色课程？", "messageType": "text"},
			record{"conversationId": 1, "role": "assistant", "content": "可以从双语、艺术和户外三个方向展开。", "messageType": "text"},
		),
		memories: newCollection(
			record{"userId": 1, "conversationId": 1, "content": "园长偏好简洁的周报格式", "memoryType": "long_term", "importance": 7, "createdAt": "2026-09-20T10:00:00+08:00"},
			record{"userId": 1, "conversationId": 1, "content": "本周关注开放日报名转化", "memoryType": "short_term", "importance": 5, "createdAt": "2026-10-14T10:00:00+08:00"},
		),
		threats: newCollection(
			record{"type": "brute_force", "severity": "high", "status": "active", "source": "10.0.3.7", "description": "多次登录失败", "detectedAt": "2026-10-16T23:10:00+08:00"},
			record{"type": "weak_password", "severity": "medium", "status": "active", "description": "3 个账号使用弱密码"},
		),
		plans: newCollection(
			record{"title": "2027 春季招生", "year": 2027, "semester": "spring", "startDate": "2026-11-01", "endDate": "2027-02-28", "targetCount": 120, "actualCount": 36, "status": "active", "ageRange": "3-4"},
			record{"title": "2026 秋季招生", "year": 2026, "semester": "autumn", "startDate": "2026-05-01", "endDate": "2026-08-31", "targetCount": 150, "actualCount": 150, "status": "completed"},
		),
		planClasses: newCollection(
			record{"planId": 1, "classId": 11, "name": "小一班", "quota": 30},
			record{"planId": 1, "classId": 12, "name": "小二班", "quota": 30},
		),
		trackings: newCollection(
			record{"planId": 1, "date": "2026-11-05", "actualCount": 12, "source": "open_day"},
		),
		quotas: newCollection(
			record{"planId": 1, "classId": 11, "totalQuota": 30, "usedQuota": 18, "reservedQuota": 4, "remainingQuota": 8},
			record{"planId": 1, "classId": 12, "totalQuota": 30, "usedQuota": 10, "reservedQuota": 0, "remainingQuota": 20},
		),
	}
}
